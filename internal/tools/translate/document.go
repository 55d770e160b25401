// ABOUTME: Picture and document translation operations for the translate tool.
// ABOUTME: Pictures go to Baidu as multipart forms; documents are created as async jobs and queried by id.

package translate

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/tidwall/gjson"

	"github.com/aduitools/adui/internal/toolkit"
)

const (
	// maxPictureInput leaves room for a 4MB image after base64 encoding
	maxPictureInput = 8 << 20

	// maxDocumentInput leaves room for a 50MB document after base64 encoding
	maxDocumentInput = 72 << 20

	// pictureAPIVersion is the fixed "v" field the picture API expects
	pictureAPIVersion = "3"
)

const pictureSchema = `{
	"type": "object",
	"properties": {
		"image": {"type": "string", "minLength": 1, "contentEncoding": "base64"},
		"mime": {"enum": ["image/png", "image/jpeg", "image/webp"]},
		"from": {"type": "string", "minLength": 1},
		"to": {"type": "string", "minLength": 1},
		"paste": {"enum": [0, 1, 2]}
	},
	"required": ["image", "mime", "from", "to"]
}`

const docCreateSchema = `{
	"type": "object",
	"properties": {
		"file": {"type": "string", "minLength": 1, "contentEncoding": "base64"},
		"format": {"type": "string", "minLength": 1},
		"from": {"type": "string", "minLength": 1},
		"to": {"type": "string", "minLength": 1},
		"filename": {"type": "string"},
		"trans_image": {"enum": [0, 1]},
		"output_format": {"type": "string", "minLength": 1},
		"filename_prefix": {"type": "string"}
	},
	"required": ["file", "format", "from", "to"]
}`

const docQuerySchema = `{
	"type": "object",
	"properties": {
		"id": {"type": "string", "minLength": 1}
	},
	"required": ["id"]
}`

type pictureInput struct {
	Image []byte `json:"image"`
	Mime  string `json:"mime"`
	From  string `json:"from"`
	To    string `json:"to"`
	Paste *int   `json:"paste"`
}

type docCreateInput struct {
	File           []byte `json:"file"`
	Format         string `json:"format"`
	From           string `json:"from"`
	To             string `json:"to"`
	Filename       string `json:"filename"`
	TransImage     *int   `json:"trans_image"`
	OutputFormat   string `json:"output_format"`
	FilenamePrefix string `json:"filename_prefix"`
}

type docInput struct {
	Content    []byte `json:"content"`
	Format     string `json:"format"`
	Filename   string `json:"filename,omitempty"`
	TransImage *int   `json:"trans_image,omitempty"`
}

type docOutput struct {
	Formats        []string `json:"formats,omitempty"`
	FilenamePrefix string   `json:"filename_prefix,omitempty"`
}

type docCreateRequest struct {
	From   string     `json:"from"`
	To     string     `json:"to"`
	Input  docInput   `json:"input"`
	Output *docOutput `json:"output,omitempty"`
}

type rawOutput struct {
	Raw json.RawMessage `json:"raw"`
}

type docCreateOutput struct {
	ID  string          `json:"id"`
	Raw json.RawMessage `json:"raw"`
}

// TranslatePicture sends a base64 image to the Baidu picture API and returns
// its raw answer.
func (t *Tool) TranslatePicture(ctx context.Context, input json.RawMessage) (json.RawMessage, error) {
	rc := t.rc.Load()
	if rc == nil {
		return nil, errNotSetUp
	}

	var in pictureInput
	if err := json.Unmarshal(input, &in); err != nil {
		return nil, fmt.Errorf("%w: %v", toolkit.ErrInvalidInput, err)
	}

	fields := map[string]string{"from": in.From, "to": in.To, "v": pictureAPIVersion}
	if in.Paste != nil {
		fields["paste"] = strconv.Itoa(*in.Paste)
	}
	body, err := t.call(ctx, rc, toolkit.Request{
		URL: t.picURL,
		Form: &toolkit.Form{
			Fields: fields,
			Files:  []toolkit.FormFile{{Field: "image", Name: "image", ContentType: in.Mime, Data: in.Image}},
		},
	})
	if err != nil {
		return nil, err
	}
	return json.Marshal(rawOutput{Raw: body})
}

// CreateDocument starts an asynchronous document translation and returns
// the job id to poll with QueryDocument.
func (t *Tool) CreateDocument(ctx context.Context, input json.RawMessage) (json.RawMessage, error) {
	rc := t.rc.Load()
	if rc == nil {
		return nil, errNotSetUp
	}

	var in docCreateInput
	if err := json.Unmarshal(input, &in); err != nil {
		return nil, fmt.Errorf("%w: %v", toolkit.ErrInvalidInput, err)
	}

	req := docCreateRequest{
		From: in.From,
		To:   in.To,
		Input: docInput{
			Content:    in.File,
			Format:     in.Format,
			Filename:   in.Filename,
			TransImage: in.TransImage,
		},
	}
	if in.OutputFormat != "" || in.FilenamePrefix != "" {
		req.Output = &docOutput{FilenamePrefix: in.FilenamePrefix}
		if in.OutputFormat != "" {
			req.Output.Formats = []string{in.OutputFormat}
		}
	}
	payload, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}

	body, err := t.call(ctx, rc, toolkit.Request{URL: t.docCreateURL, Body: payload})
	if err != nil {
		return nil, err
	}
	id := gjson.GetBytes(body, "result.id").String()
	if id == "" {
		return nil, fmt.Errorf("%w: doc create: %s", ErrProvider, string(body))
	}
	return json.Marshal(docCreateOutput{ID: id, Raw: body})
}

// QueryDocument returns the raw status of a document translation job.
func (t *Tool) QueryDocument(ctx context.Context, input json.RawMessage) (json.RawMessage, error) {
	rc := t.rc.Load()
	if rc == nil {
		return nil, errNotSetUp
	}

	var in struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(input, &in); err != nil {
		return nil, fmt.Errorf("%w: %v", toolkit.ErrInvalidInput, err)
	}
	payload, err := json.Marshal(in)
	if err != nil {
		return nil, err
	}

	body, err := t.call(ctx, rc, toolkit.Request{URL: t.docQueryURL, Body: payload})
	if err != nil {
		return nil, err
	}
	return json.Marshal(rawOutput{Raw: body})
}
