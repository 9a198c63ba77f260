// Package decoder turns a live room page into a live.Info.
//
// The room page embeds its initial state as percent-encoded JSON inside the
// element with id RENDER_DATA. Decoding is pure: each step fails with its own
// error kind and nothing is retried.
package decoder

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-playground/validator/v10"
	"github.com/tidwall/gjson"

	"github.com/jmylchreest/livegate/internal/logger"
	"github.com/jmylchreest/livegate/pkg/live"
)

// RenderDataID is the id of the element carrying the embedded state.
const RenderDataID = "RENDER_DATA"

// roomContainers are searched in order for an object holding "room".
// The empty path is the document root.
var roomContainers = []string{
	"app.initialState.roomStore.roomInfo",
	"initialState.roomStore.roomInfo",
	"",
}

// Decoder maps room pages to live.Info.
type Decoder struct {
	validate *validator.Validate
}

// New creates a Decoder.
func New() *Decoder {
	return &Decoder{
		validate: validator.New(validator.WithRequiredStructEnabled()),
	}
}

// Decode extracts, unescapes, parses and maps the embedded state of html.
func (d *Decoder) Decode(html string) (*live.Info, error) {
	text, ok, err := ExtractElementText(html, RenderDataID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", live.ErrNotFound, err)
	}
	if !ok {
		return nil, fmt.Errorf("%w: no element with id %s", live.ErrNotFound, RenderDataID)
	}

	decoded, err := url.PathUnescape(text)
	if err != nil {
		return nil, fmt.Errorf("%w: %s content is not percent-encoded: %v", live.ErrNotFound, RenderDataID, err)
	}

	return d.DecodeJSON(decoded)
}

// DecodeJSON parses and maps already-unescaped embedded state.
func (d *Decoder) DecodeJSON(text string) (*live.Info, error) {
	text = strings.TrimSpace(text)
	if !gjson.Valid(text) {
		return nil, fmt.Errorf("%w: %s is not valid JSON (%d bytes)", live.ErrParse, RenderDataID, len(text))
	}

	root := gjson.Parse(text)
	if !root.IsObject() {
		return nil, &live.MappingError{Field: "$", Err: errors.New("expected object")}
	}

	info, err := mapRoom(root)
	if err != nil {
		return nil, err
	}

	if err := d.validate.Struct(info); err != nil {
		return nil, validationError(err)
	}

	logger.Debug("room decoded",
		"title", info.Title,
		"status", info.StatusText(),
		"streams", len(info.StreamURLs))

	return info, nil
}

// ExtractElementText returns the text content of the first element with the
// given id. The boolean is false when no such element exists.
func ExtractElementText(html, id string) (string, bool, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return "", false, err
	}

	sel := doc.Find(fmt.Sprintf("[id=%q]", id)).First()
	if sel.Length() == 0 {
		return "", false, nil
	}
	return sel.Text(), true, nil
}

// fieldPaths maps live.Info struct fields to the JSON path they come from,
// relative to the room object.
var fieldPaths = map[string]string{
	"Title":      "title",
	"Status":     "status",
	"RoomID":     "id_str",
	"Owner":      "owner.nickname",
	"Avatar":     "owner.avatar_thumb.url_list.0",
	"Cover":      "cover.url_list.0",
	"Viewers":    "user_count_str",
	"StreamURLs": "stream_url.flv_pull_url",
	"HLSURLs":    "stream_url.hls_pull_url_map",
}

// validationError converts the first validator failure into a MappingError
// naming the JSON field.
func validationError(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return &live.MappingError{Field: "room", Err: err}
	}

	fe := verrs[0]
	name, key := fe.StructField(), ""
	if i := strings.IndexByte(name, '['); i >= 0 {
		key = strings.TrimSuffix(name[i+1:], "]")
		name = name[:i]
	}

	field := "room." + strings.ToLower(name)
	if p, ok := fieldPaths[name]; ok {
		field = "room." + p
	}
	if key != "" {
		field += "." + key
	}

	return &live.MappingError{Field: field, Err: fmt.Errorf("failed %q validation", fe.Tag())}
}
