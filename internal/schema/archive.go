package schema

import (
	"sort"
	"strconv"
	"strings"
)

// LogHeader is the first line of every series log.
const LogHeader = "Date, Time, User, Obj, Sections, Event"

// ArchiveSteps upgrade a whole archive document.
var ArchiveSteps = []Step{
	{Name: "key-per-file", Apply: archiveKeyPerFile},
	{Name: "log", Apply: func(doc map[string]any) error {
		if _, ok := doc["log"]; !ok {
			doc["log"] = LogHeader
		}
		return nil
	}},
	{Name: "layout", Apply: func(doc map[string]any) error {
		if _, err := mapAt(doc, "series"); err != nil {
			return err
		}
		if _, err := listAt(doc, "sections"); err != nil {
			return err
		}
		if _, ok := doc["log"].(string); !ok {
			return &FormatError{Path: "log", Msg: "must be a string"}
		}
		return nil
	}},
}

// archiveKeyPerFile converts the legacy layout, where every file of the
// working directory was a top-level key, into series/sections.
func archiveKeyPerFile(doc map[string]any) error {
	_, hasSections := doc["sections"]
	_, hasSeries := doc["series"]
	if hasSections || hasSeries {
		return nil
	}
	sections := map[int]any{}
	var series any
	keys := make([]string, 0, len(doc))
	for k := range doc {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		ext := k
		if i := strings.LastIndexByte(k, '.'); i >= 0 {
			ext = k[i+1:]
		}
		if n, err := strconv.Atoi(ext); err == nil && n >= 0 {
			sections[n] = doc[k]
		} else if k != "log" {
			series = doc[k]
		}
	}
	if series == nil {
		return &FormatError{Msg: "archive has no series document"}
	}
	maxN := -1
	for n := range sections {
		maxN = max(maxN, n)
	}
	list := make([]any, maxN+1)
	for n, s := range sections {
		list[n] = s
	}
	for k := range doc {
		if k != "log" {
			delete(doc, k)
		}
	}
	doc["series"] = series
	doc["sections"] = list
	return nil
}
