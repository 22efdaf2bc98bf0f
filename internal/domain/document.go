package domain

import (
	"strconv"
	"time"
)

// Document is a titled note belonging to a workspace. Date is a free-form
// client label used for filtering; Time orders documents.
type Document struct {
	ID        int64     `json:"id" bson:"_id"`
	Workspace string    `json:"workspace" bson:"workspace"`
	Time      time.Time `json:"time" bson:"time"`
	Date      string    `json:"date" bson:"date"`
	Title     string    `json:"title" bson:"title"`
	Content   string    `json:"content" bson:"content"`
}

// DocumentRequest is the body of POST /docs and POST /docs/{id}. Date is
// ignored on update.
type DocumentRequest struct {
	Date    string `json:"date"`
	Title   string `json:"title"`
	Content string `json:"content"`
}

// DocumentSummary is one entry of the GET /docs listing
type DocumentSummary struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

// DocumentBody is the response of GET /docs/{id}
type DocumentBody struct {
	Title   string `json:"title"`
	Content string `json:"content"`
}

// Summary returns the listing form of the document. The id is rendered as a
// decimal string, which clients treat as opaque.
func (d *Document) Summary() DocumentSummary {
	return DocumentSummary{ID: FormatDocumentID(d.ID), Title: d.Title}
}

// Body returns the single-document response form
func (d *Document) Body() DocumentBody {
	return DocumentBody{Title: d.Title, Content: d.Content}
}

// FormatDocumentID renders a document id for the wire
func FormatDocumentID(id int64) string {
	return strconv.FormatInt(id, 10)
}

// ParseDocumentID parses a wire document id
func ParseDocumentID(s string) (int64, error) {
	return strconv.ParseInt(s, 10, 64)
}
