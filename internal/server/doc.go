// Package server accepts TCP connections and serves exactly one HTTP
// request per connection.
//
// Each accepted socket gets its own goroutine that walks the connection
// through reading, routing and writing. A deadline timer armed at accept
// time bounds the whole exchange: when it fires it closes the socket, which
// fails any pending read or write. The goroutine and the timer callback race
// to release the connection; an atomic close-once guard lets exactly one of
// them close the socket.
//
// After the response is written the outbound side is half-closed, the
// timer is stopped and the socket is closed. There is no keep-alive.
//
// Usage:
//
//	srv := server.New(router, server.Config{Timeout: time.Minute}, quartz.NewReal(), metrics, logger)
//	ln, _ := net.Listen("tcp", "0.0.0.0:8080")
//	err := srv.Serve(ctx, ln) // returns after ctx is cancelled and connections drain
package server
