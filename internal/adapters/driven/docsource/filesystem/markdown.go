package filesystem

import (
	"bufio"
	"os"
	"path/filepath"
	"strings"
)

// frontmatterLimit caps how much of a file is scanned for frontmatter.
// Tags live at the top of a note; reading whole files during
// enumeration would make the periodic scan too expensive.
const frontmatterLimit = 64

// ExtractTitle returns the document title: the first depth-1 heading,
// or the filename with separators spaced out.
func ExtractTitle(content, path string) string {
	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(line)
		if strings.HasPrefix(line, "# ") {
			return strings.TrimSpace(strings.TrimPrefix(line, "#"))
		}
	}
	return titleFromFilename(path)
}

// titleFromFilename derives a readable title from a path.
func titleFromFilename(path string) string {
	name := filepath.Base(path)
	name = strings.TrimSuffix(name, filepath.Ext(name))
	name = strings.ReplaceAll(name, "_", " ")
	name = strings.ReplaceAll(name, "-", " ")
	return name
}

// readFrontmatter parses the YAML-style frontmatter block without
// loading the whole file. Tags support the common forms:
//
//	tags: [a, b]
//	tags: a, b
//	tags:
//	  - a
//	  - b
//
// Every other scalar "key: value" line becomes a property, e.g.
// "status: draft". Nested structures are ignored; frontmatter is a
// best-effort filter source, not a YAML document.
func readFrontmatter(absPath string) (tags []string, properties map[string]string) {
	f, err := os.Open(absPath)
	if err != nil {
		return nil, nil
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	if !scanner.Scan() || strings.TrimSpace(scanner.Text()) != "---" {
		return nil, nil
	}

	inTags := false
	for i := 0; scanner.Scan() && i < frontmatterLimit; i++ {
		line := scanner.Text()
		trimmed := strings.TrimSpace(line)
		if trimmed == "---" {
			break
		}

		if inTags {
			if strings.HasPrefix(trimmed, "- ") {
				if tag := strings.TrimSpace(strings.TrimPrefix(trimmed, "- ")); tag != "" {
					tags = append(tags, tag)
				}
				continue
			}
			inTags = false
		}

		if strings.HasPrefix(trimmed, "tags:") {
			value := strings.TrimSpace(strings.TrimPrefix(trimmed, "tags:"))
			if value == "" {
				inTags = true
				continue
			}
			value = strings.Trim(value, "[]")
			for _, tag := range strings.Split(value, ",") {
				if tag = strings.TrimSpace(tag); tag != "" {
					tags = append(tags, tag)
				}
			}
			continue
		}

		// Indented lines belong to a nested structure, skip them.
		if strings.TrimLeft(line, " \t") != line {
			continue
		}
		key, value, ok := strings.Cut(trimmed, ":")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		value = strings.TrimSpace(value)
		if key == "" || value == "" {
			continue
		}
		if properties == nil {
			properties = make(map[string]string)
		}
		properties[key] = strings.Trim(value, `"'`)
	}
	return tags, properties
}
