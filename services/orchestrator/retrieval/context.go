// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package retrieval

import (
	"fmt"
	"strings"
)

// Section headers in assembled context.
const (
	SectionFacts       = "FACTS"
	SectionSupplements = "EXTERNAL SUPPLEMENTS"
	SectionTone        = "TONE GUIDANCE"
)

// AssembleContext renders a Context as labeled sections for an LLM prompt.
// Empty sections are omitted; an empty Context renders as "".
func AssembleContext(rc Context) string {
	var sections []string

	if len(rc.Content) > 0 {
		sections = append(sections, renderSection(SectionFacts, rc.Content, true))
	}

	supplements := make([]Result, 0, len(rc.Web)+len(rc.Scripture))
	supplements = append(supplements, rc.Web...)
	supplements = append(supplements, rc.Scripture...)
	if len(supplements) > 0 {
		sections = append(sections, renderSection(SectionSupplements, supplements, false))
	}

	if len(rc.Style) > 0 {
		sections = append(sections, renderSection(SectionTone, rc.Style, false))
	}

	return strings.Join(sections, "\n\n")
}

func renderSection(header string, results []Result, withConfidence bool) string {
	var b strings.Builder
	b.WriteString("=== ")
	b.WriteString(header)
	b.WriteString(" ===")
	for _, r := range results {
		b.WriteString("\n\n")
		if withConfidence {
			fmt.Fprintf(&b, "[%s - %s] (confidence: %.2f)\n", collectionLabel(r.Collection), r.Source(), r.Confidence())
		} else {
			fmt.Fprintf(&b, "[%s - %s]\n", collectionLabel(r.Collection), r.Source())
		}
		b.WriteString(strings.TrimSpace(r.Text))
	}
	return b.String()
}

// collectionLabel turns collection names into reader-facing labels.
func collectionLabel(collection string) string {
	switch collection {
	case CollectionOfficialWeb:
		return "Official Site"
	case CollectionOpenWeb:
		return "Web"
	}
	label := strings.Replace(collection, "Platform", " Platform", 1)
	label = strings.Replace(label, "QA", " Q&A", 1)
	label = strings.Replace(label, "Guidance", " Guidance", 1)
	return strings.Replace(label, "_", ": ", 1)
}
