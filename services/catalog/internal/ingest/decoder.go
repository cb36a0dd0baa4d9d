// Package ingest streams the games dataset into the catalog store.
//
// The source is one JSON object keyed by Steam app id. Decoder walks it entry
// by entry so memory stays bounded by the largest single entry; Writer groups
// decoded games into batches and commits each as its own transaction.
package ingest

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/example/openvalve/services/catalog/internal/store"
)

// DecodeError reports a structurally invalid source document. Ingestion
// cannot continue past it.
type DecodeError struct {
	Offset int64
	Err    error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode source at byte %d: %v", e.Offset, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// SkipReason explains why an entry produced no game.
type SkipReason string

const (
	SkipMissingName SkipReason = "missing_name"
	SkipBadKey      SkipReason = "bad_key"
	SkipNotObject   SkipReason = "not_object"
)

// Decoder yields one normalized game per source entry.
type Decoder struct {
	dec     *json.Decoder
	started bool
	done    bool

	// OnSkip, when set, is called for every entry that is dropped.
	OnSkip func(key string, reason SkipReason)
}

func NewDecoder(r io.Reader) *Decoder {
	dec := json.NewDecoder(r)
	dec.UseNumber()
	return &Decoder{dec: dec}
}

// Next returns the next game, io.EOF after the closing brace, or a
// *DecodeError when the document itself is malformed. Entries without a name,
// with a non-integer key, or whose value is not an object are skipped.
func (d *Decoder) Next() (store.Game, error) {
	if d.done {
		return store.Game{}, io.EOF
	}
	if !d.started {
		if err := d.expectDelim('{'); err != nil {
			return store.Game{}, err
		}
		d.started = true
	}

	for {
		if !d.dec.More() {
			if err := d.expectDelim('}'); err != nil {
				return store.Game{}, err
			}
			if _, err := d.dec.Token(); err != io.EOF {
				return store.Game{}, d.fail(errors.New("trailing data after top-level object"))
			}
			d.done = true
			return store.Game{}, io.EOF
		}

		tok, err := d.dec.Token()
		if err != nil {
			return store.Game{}, d.fail(err)
		}
		key, ok := tok.(string)
		if !ok {
			return store.Game{}, d.fail(fmt.Errorf("expected object key, got %v", tok))
		}
		var raw json.RawMessage
		if err := d.dec.Decode(&raw); err != nil {
			return store.Game{}, d.fail(err)
		}

		g, reason := decodeEntry(key, raw)
		if reason != "" {
			if d.OnSkip != nil {
				d.OnSkip(key, reason)
			}
			continue
		}
		return g, nil
	}
}

func (d *Decoder) expectDelim(want json.Delim) error {
	tok, err := d.dec.Token()
	if err != nil {
		return d.fail(err)
	}
	if got, ok := tok.(json.Delim); !ok || got != want {
		return d.fail(fmt.Errorf("expected %q, got %v", want, tok))
	}
	return nil
}

// fail ends the stream. Running out of input inside the top-level object is
// reported as io.ErrUnexpectedEOF so callers never mistake it for the end.
func (d *Decoder) fail(err error) error {
	if errors.Is(err, io.EOF) {
		err = io.ErrUnexpectedEOF
	}
	d.done = true
	return &DecodeError{Offset: d.dec.InputOffset(), Err: err}
}

// decodeEntry maps one source entry to a game. It is the single place where
// source defaults are applied:
//
//	name                       required; missing or empty skips the entry
//	text fields                "" (NUL characters are removed)
//	integer counters           0, also when outside the int32 range
//	price                      0.00
//	windows, mac, linux        false
//	developers … tags          [] (arrays of strings, or object keys in order;
//	                           NULs removed)
//
// A field whose value has the wrong shape is treated as absent.
func decodeEntry(key string, raw json.RawMessage) (store.Game, SkipReason) {
	appID, err := strconv.ParseInt(strings.TrimSpace(key), 10, 64)
	if err != nil {
		return store.Game{}, SkipBadKey
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil || fields == nil {
		return store.Game{}, SkipNotObject
	}

	f := entryFields(fields)
	name := f.text("name")
	if strings.TrimSpace(name) == "" {
		return store.Game{}, SkipMissingName
	}

	g := store.Game{
		AppID:            appID,
		Name:             name,
		ReleaseDate:      f.text("release_date"),
		EstimatedOwners:  f.text("estimated_owners"),
		PeakCCU:          f.int32("peak_ccu"),
		RequiredAge:      f.int32("required_age"),
		Price:            f.price("price"),
		DLCCount:         f.int32("dlc_count"),
		Description:      f.text("detailed_description"),
		ShortDescription: f.text("short_description"),
		Languages:        f.text("supported_languages"),
		HeaderImage:      f.text("header_image"),
		Website:          f.text("website"),
		Windows:          f.bool("windows"),
		Mac:              f.bool("mac"),
		Linux:            f.bool("linux"),
		UserScore:        f.int32("user_score"),
		Positive:         f.int32("positive"),
		Negative:         f.int32("negative"),
		ScoreRank:        f.text("score_rank"),
		Achievements:     f.int32("achievements"),
		Recommendations:  f.int32("recommendations"),
		Notes:            f.text("notes"),

		AveragePlaytimeForever: f.int32("average_playtime_forever"),
		AveragePlaytime2Weeks:  f.int32("average_playtime_2weeks"),
		MedianPlaytimeForever:  f.int32("median_playtime_forever"),
		MedianPlaytime2Weeks:   f.int32("median_playtime_2weeks"),

		Developers: f.list("developers"),
		Publishers: f.list("publishers"),
		Categories: f.list("categories"),
		Genres:     f.list("genres"),
		Tags:       f.list("tags"),
	}
	return g, ""
}

type entryFields map[string]json.RawMessage

func (f entryFields) text(name string) string {
	raw, ok := f[name]
	if !ok {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return stripNUL(s)
	}
	// Numbers are kept as written, e.g. score_rank: 97.
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		return n.String()
	}
	return ""
}

func (f entryFields) int32(name string) int32 {
	n, ok := f.number(name)
	if !ok {
		return 0
	}
	if i, err := n.Int64(); err == nil {
		if i < math.MinInt32 || i > math.MaxInt32 {
			return 0
		}
		return int32(i)
	}
	v, err := n.Float64()
	if err != nil || v != math.Trunc(v) || v < math.MinInt32 || v > math.MaxInt32 {
		return 0
	}
	return int32(v)
}

func (f entryFields) price(name string) store.Price {
	n, ok := f.number(name)
	if !ok {
		return 0
	}
	p, err := store.ParsePrice(n.String())
	if err != nil {
		return 0
	}
	return p
}

func (f entryFields) number(name string) (json.Number, bool) {
	raw, ok := f[name]
	if !ok {
		return "", false
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var n json.Number
	if err := dec.Decode(&n); err != nil {
		return "", false
	}
	return n, true
}

func (f entryFields) bool(name string) bool {
	raw, ok := f[name]
	if !ok {
		return false
	}
	var b bool
	if err := json.Unmarshal(raw, &b); err != nil {
		return false
	}
	return b
}

// list accepts an array (string elements kept, others dropped) or an object,
// in which case its keys are returned in document order. The dataset stores
// tags as {"Indie": 120, ...}.
func (f entryFields) list(name string) []string {
	out := []string{}
	raw, ok := f[name]
	if !ok {
		return out
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	tok, err := dec.Token()
	if err != nil {
		return out
	}
	switch tok {
	case json.Delim('['):
		for dec.More() {
			var v any
			if err := dec.Decode(&v); err != nil {
				return []string{}
			}
			if s, ok := v.(string); ok {
				out = append(out, stripNUL(s))
			}
		}
	case json.Delim('{'):
		for dec.More() {
			kt, err := dec.Token()
			if err != nil {
				return []string{}
			}
			k, _ := kt.(string)
			var skip json.RawMessage
			if err := dec.Decode(&skip); err != nil {
				return []string{}
			}
			out = append(out, stripNUL(k))
		}
	}
	return out
}

// stripNUL drops U+0000, which Postgres TEXT and JSONB reject.
func stripNUL(s string) string {
	if strings.IndexByte(s, 0) < 0 {
		return s
	}
	return strings.ReplaceAll(s, "\x00", "")
}
