package verify

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"

	"github.com/tidwall/gjson"
)

var (
	textRecord  = regexp.MustCompile(`^Message \{ name: ("(?:[^"\\]|\\.)*"), identifier: (\d+), history: \{(.*)\} \}$`)
	textHistory = regexp.MustCompile(`(Request|Response): ("(?:[^"\\]|\\.)*")`)
)

// parseText reads the debug-style text rendering of a record.
func parseText(line []byte) (Record, error) {
	match := textRecord.FindSubmatch(line)
	if match == nil {
		return Record{}, errors.New("malformed text record")
	}
	name, err := strconv.Unquote(string(match[1]))
	if err != nil {
		return Record{}, fmt.Errorf("malformed name: %w", err)
	}
	id, err := strconv.ParseUint(string(match[2]), 10, 64)
	if err != nil {
		return Record{}, fmt.Errorf("malformed identifier: %w", err)
	}
	rec := Record{Name: name, Identifier: id}
	for _, entry := range textHistory.FindAllSubmatch(match[3], -1) {
		note, err := strconv.Unquote(string(entry[2]))
		if err != nil {
			return Record{}, fmt.Errorf("malformed %s history: %w", entry[1], err)
		}
		if string(entry[1]) == "Request" {
			rec.Request = note
		} else {
			rec.Response = note
		}
	}
	return rec, nil
}

// parseJSON reads a JSON-lines record.
func parseJSON(line []byte) (Record, error) {
	if !gjson.ValidBytes(line) {
		return Record{}, errors.New("malformed JSON record")
	}
	fields := gjson.GetManyBytes(line, "name", "identifier", "history.Request", "history.Response")
	if fields[1].Type != gjson.Number {
		return Record{}, errors.New("identifier missing or not a number")
	}
	return Record{
		Name:       fields[0].String(),
		Identifier: fields[1].Uint(),
		Request:    fields[2].String(),
		Response:   fields[3].String(),
	}, nil
}
