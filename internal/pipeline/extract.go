package pipeline

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/docintel/internal/model"
	"github.com/sells-group/docintel/internal/provider"
	"github.com/sells-group/docintel/internal/repair"
	"github.com/sells-group/docintel/internal/router"
	"github.com/sells-group/docintel/internal/rules"
)

// maxTextChars bounds the text layer embedded in an extraction prompt.
const maxTextChars = 60_000

var errUnparseable = eris.New("pipeline: response is not a JSON object")

// Extract calls the extraction strategy once per document and keeps every
// usable payload. With no usable payload the run jumps to report.
func (m *Machine[T]) Extract(ctx context.Context, r *Run[T]) State {
	t := m.class.Type()
	if len(r.Input.Documents) == 0 {
		r.Report.Status = model.ReportIncomplete
		r.Report.Errors = append(r.Report.Errors, "no documents supplied")
		return StateReport
	}

	for _, doc := range r.Input.Documents {
		res, xerr := m.extractOne(ctx, r, doc)
		if xerr != nil {
			r.log.Warn("pipeline: extraction failed",
				zap.String("document", doc.ID),
				zap.Bool("routing", xerr.Routing),
				zap.String("reason", xerr.Reason),
			)
			r.Report.ExtractionErrors = append(r.Report.ExtractionErrors, *xerr)
			continue
		}
		payload, ok := res.Payload.(T)
		if !ok {
			r.Report.ExtractionErrors = append(r.Report.ExtractionErrors, model.ExtractionError{
				DocumentID: doc.ID,
				Reason:     fmt.Sprintf("payload type %T does not match %s", res.Payload, t),
			})
			continue
		}
		r.Report.Extractions = append(r.Report.Extractions, *res)
		r.Payloads = append(r.Payloads, payload)
	}

	r.note = fmt.Sprintf("%d of %d documents extracted", len(r.Report.Extractions), len(r.Input.Documents))
	if len(r.Report.Extractions) > 0 {
		return StateValidate
	}

	r.Report.Status = model.ReportIncomplete
	if allRouting(r.Report.ExtractionErrors) {
		r.Report.Status = model.ReportFailed
	}
	for _, e := range r.Report.ExtractionErrors {
		r.Report.Errors = append(r.Report.Errors, e.Error())
	}
	return StateReport
}

func allRouting(errs []model.ExtractionError) bool {
	if len(errs) == 0 {
		return false
	}
	for _, e := range errs {
		if !e.Routing {
			return false
		}
	}
	return true
}

func (m *Machine[T]) extractOne(ctx context.Context, r *Run[T], doc model.Document) (*model.ExtractionResult, *model.ExtractionError) {
	t := m.class.Type()
	fail := func(routing bool, format string, args ...any) *model.ExtractionError {
		return &model.ExtractionError{DocumentID: doc.ID, Reason: fmt.Sprintf(format, args...), Routing: routing}
	}

	prompt, images, err := m.buildRequest(doc)
	if err != nil {
		return nil, fail(false, "%v", err)
	}

	res, err := m.router.Route(ctx, router.Request{
		Task:   router.TaskExtraction,
		Prompt: prompt,
		Images: images,
		Accept: acceptObject,
	})
	if err != nil {
		return nil, fail(true, "%v", err)
	}
	resp := res.Response
	r.Report.Usage.Add(resp.Usage)
	r.Report.Cost += resp.Cost

	var raw map[string]any
	if !repair.Into(resp.Text, &raw) || raw == nil {
		return nil, fail(false, "unparseable model output from %s/%s", res.Provider, res.Model)
	}
	confidence := takeConfidence(raw)

	issues, err := m.schemas.Validate(t, raw)
	if err != nil {
		return nil, fail(false, "%v", err)
	}

	payload, err := model.DecodePayload(t, raw)
	if err != nil {
		return nil, fail(false, "decode %s: %v", t, err)
	}
	if missing := payload.MissingFields(); len(missing) > 0 {
		return nil, fail(false, "missing mandatory fields: %s", strings.Join(missing, ", "))
	}

	return &model.ExtractionResult{
		DocumentID:   doc.ID,
		DocumentType: t,
		Payload:      payload,
		Raw:          raw,
		SchemaIssues: issues,
		Confidence:   confidence,
		RawText:      resp.Text,
		Provider:     res.Provider,
		Model:        res.Model,
		Attempt:      res.Attempt,
		Duration:     resp.Duration,
		Usage:        resp.Usage,
		Cost:         resp.Cost,
	}, nil
}

// acceptObject rejects responses that cannot be repaired into a JSON object.
func acceptObject(resp *provider.Response) error {
	var v map[string]any
	if !repair.Into(resp.Text, &v) || len(v) == 0 {
		return errUnparseable
	}
	return nil
}

// buildRequest assembles the prompt and attachments for doc. Images travel
// as compressed attachments; PDFs and tabular exports travel as text.
func (m *Machine[T]) buildRequest(doc model.Document) (string, []provider.Image, error) {
	t := m.class.Type()
	prompt := classPrompt(m.prompts, m.class, m.schemas.Hint(t))

	switch {
	case doc.LoadError != "":
		return "", nil, eris.Errorf("document %s could not be loaded: %s", doc.Name, doc.LoadError)
	case doc.IsImage():
		images, err := provider.PrepareImages([]provider.Image{{MediaType: doc.MediaType, Data: doc.Data}}, m.images)
		if err != nil {
			return "", nil, eris.Wrapf(err, "prepare image %s", doc.Name)
		}
		return prompt, images, nil
	case strings.TrimSpace(doc.Text) != "":
		return prompt + documentText(doc.Text), nil, nil
	case doc.IsPDF():
		return "", nil, eris.Errorf("pdf %s has no text layer", doc.Name)
	case strings.HasPrefix(doc.MediaType, "text/") && len(doc.Data) > 0:
		return prompt + documentText(string(doc.Data)), nil, nil
	default:
		return "", nil, eris.Errorf("unsupported media type %q for %s", doc.MediaType, doc.Name)
	}
}

func documentText(text string) string {
	text = strings.TrimSpace(text)
	if len(text) > maxTextChars {
		cut := maxTextChars
		for cut > 0 && !utf8.RuneStart(text[cut]) {
			cut--
		}
		text = text[:cut]
	}
	return "\n\nDocument text:\n" + text
}

// takeConfidence removes the self-reported confidence from raw and returns
// it on a 0–100 scale.
func takeConfidence(raw map[string]any) float64 {
	v, ok := raw["confidence"]
	if !ok {
		return 0
	}
	delete(raw, "confidence")

	var c float64
	switch n := v.(type) {
	case float64:
		c = n
	case string:
		c = model.ParseAmount(n)
	}
	if c > 0 && c <= 1 {
		c *= 100
	}
	return rules.Clamp(c, 0, 100)
}
