package model

import (
	"strings"
)

// DocumentType identifies one of the document classes the pipelines handle.
type DocumentType string

const (
	DocIdentity      DocumentType = "identity"
	DocPayslip       DocumentType = "payslip"
	DocBankStatement DocumentType = "bank_statement"
	DocTaxReturn     DocumentType = "tax_return"
	DocEmployment    DocumentType = "employment"
	DocAcademic      DocumentType = "academic"
	DocAdmission     DocumentType = "admission"
)

// AllDocumentTypes lists every document class in a stable order.
var AllDocumentTypes = []DocumentType{
	DocIdentity,
	DocPayslip,
	DocBankStatement,
	DocTaxReturn,
	DocEmployment,
	DocAcademic,
	DocAdmission,
}

// Valid reports whether t is a known document class.
func (t DocumentType) Valid() bool {
	for _, k := range AllDocumentTypes {
		if k == t {
			return true
		}
	}
	return false
}

// IsIncome reports whether the class carries an income signal.
func (t DocumentType) IsIncome() bool {
	return t == DocPayslip || t == DocBankStatement || t == DocTaxReturn
}

// Label returns a human-readable name used in reasons and prompts.
func (t DocumentType) Label() string {
	switch t {
	case DocIdentity:
		return "identity document"
	case DocPayslip:
		return "salary slip"
	case DocBankStatement:
		return "bank statement"
	case DocTaxReturn:
		return "tax return"
	case DocEmployment:
		return "employment letter"
	case DocAcademic:
		return "academic record"
	case DocAdmission:
		return "admission letter"
	default:
		return strings.ReplaceAll(string(t), "_", " ")
	}
}

// Document is one uploaded asset as seen by the core.
type Document struct {
	ID        string       `json:"id"`
	Type      DocumentType `json:"type"`
	Name      string       `json:"name"`
	MediaType string       `json:"media_type"`
	Data      []byte       `json:"-"`
	// Text is a pre-extracted text layer (OCR output or tabular rendering).
	Text string `json:"-"`
	// LoadError is set when the source could not be read. Such a document
	// carries no data and fails extraction for its class only.
	LoadError string `json:"load_error,omitempty"`
}

// IsImage reports whether the document is a raster image.
func (d Document) IsImage() bool {
	return strings.HasPrefix(d.MediaType, "image/")
}

// IsPDF reports whether the document is a PDF.
func (d Document) IsPDF() bool {
	return d.MediaType == "application/pdf"
}

// IsTabular reports whether the document is a CSV or spreadsheet export.
func (d Document) IsTabular() bool {
	switch d.MediaType {
	case "text/csv", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet":
		return true
	}
	return false
}

// DocumentRef is the persisted reference to a document inside a report.
type DocumentRef struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	MediaType    string `json:"media_type"`
	URL          string `json:"url,omitempty"`
	DeleteHandle string `json:"delete_handle,omitempty"`
}
