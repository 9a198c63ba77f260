package decoder

import (
	"errors"
	"fmt"

	"github.com/tidwall/gjson"

	"github.com/jmylchreest/livegate/pkg/live"
)

// mapRoom locates the room object and reads live.Info out of it.
func mapRoom(root gjson.Result) (*live.Info, error) {
	var container gjson.Result
	var room gjson.Result
	prefix := ""
	for _, path := range roomContainers {
		c := root
		if path != "" {
			c = root.Get(path)
		}
		if r := c.Get("room"); r.Exists() && r.Type != gjson.Null {
			container, room, prefix = c, r, path
			break
		}
	}
	if !room.Exists() {
		return nil, &live.MappingError{Field: "room", Err: errors.New("missing")}
	}
	if !room.IsObject() {
		return nil, &live.MappingError{Field: "room", Err: errors.New("expected object")}
	}

	r := &reader{obj: room, prefix: "room"}
	info := &live.Info{
		Title:      r.str("title", true),
		Status:     r.num("status", true),
		RoomID:     r.str("id_str", false),
		Owner:      r.str("owner.nickname", false),
		Avatar:     r.str("owner.avatar_thumb.url_list.0", false),
		Cover:      r.str("cover.url_list.0", false),
		Viewers:    r.str("user_count_str", false),
		StreamURLs: r.strMap("stream_url.flv_pull_url"),
		HLSURLs:    r.strMap("stream_url.hls_pull_url_map"),
	}

	outer := &reader{obj: container, prefix: prefix}
	info.WebRID = outer.str("web_rid", false)

	if r.err != nil {
		return nil, r.err
	}
	if outer.err != nil {
		return nil, outer.err
	}
	return info, nil
}

// reader pulls typed values out of a JSON object and keeps the first
// schema violation.
type reader struct {
	obj    gjson.Result
	prefix string
	err    error
}

func (r *reader) field(path string) string {
	if r.prefix == "" {
		return path
	}
	return r.prefix + "." + path
}

func (r *reader) fail(path string, format string, args ...any) {
	if r.err == nil {
		r.err = &live.MappingError{Field: r.field(path), Err: fmt.Errorf(format, args...)}
	}
}

// lookup returns the value at path, treating JSON null as absent.
func (r *reader) lookup(path string, required bool) (gjson.Result, bool) {
	v := r.obj.Get(path)
	if !v.Exists() || v.Type == gjson.Null {
		if required {
			r.fail(path, "missing")
		}
		return v, false
	}
	return v, true
}

func (r *reader) str(path string, required bool) string {
	v, ok := r.lookup(path, required)
	if !ok {
		return ""
	}
	if v.Type != gjson.String {
		r.fail(path, "expected string, got %s", v.Type)
		return ""
	}
	return v.Str
}

func (r *reader) num(path string, required bool) int {
	v, ok := r.lookup(path, required)
	if !ok {
		return 0
	}
	if v.Type != gjson.Number {
		r.fail(path, "expected number, got %s", v.Type)
		return 0
	}
	return int(v.Int())
}

func (r *reader) strMap(path string) map[string]string {
	v, ok := r.lookup(path, false)
	if !ok {
		return nil
	}
	if !v.IsObject() {
		r.fail(path, "expected object, got %s", v.Type)
		return nil
	}

	out := make(map[string]string)
	v.ForEach(func(key, value gjson.Result) bool {
		if value.Type != gjson.String {
			r.fail(path+"."+key.String(), "expected string, got %s", value.Type)
			return false
		}
		out[key.String()] = value.Str
		return true
	})
	if len(out) == 0 {
		return nil
	}
	return out
}
