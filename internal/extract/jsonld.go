package extract

import (
	"encoding/json"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// StructuredData is the canonical shape distilled from a page's JSON-LD
// blocks. JSON-LD in the wild is loosely typed: the root may be an object or
// an array, and the address may hang off the entity directly or under
// location.address. This normalization happens once so downstream extraction
// never sniffs shapes itself.
type StructuredData struct {
	Name      string
	Telephone string
	Email     string
	ImageURL  string
	Street    string
	Street2   string
	City      string
	State     string
	Zip       string
}

// HasAddress reports whether any address component was present.
func (sd StructuredData) HasAddress() bool {
	return sd.Street != "" || sd.City != "" || sd.State != "" || sd.Zip != ""
}

// ParseStructuredData scans every application/ld+json script in the document
// and folds the entities into one canonical record, first value wins per
// field. Malformed blocks are skipped.
func ParseStructuredData(doc *goquery.Document) StructuredData {
	var sd StructuredData

	doc.Find(`script[type="application/ld+json"]`).Each(func(_ int, s *goquery.Selection) {
		raw := strings.TrimSpace(s.Text())
		if raw == "" {
			return
		}
		var root any
		if err := json.Unmarshal([]byte(raw), &root); err != nil {
			return
		}
		for _, node := range flattenNodes(root) {
			mergeNode(&sd, node)
		}
	})

	return sd
}

// flattenNodes normalizes an object-or-array JSON-LD root, descending one
// level into @graph containers.
func flattenNodes(root any) []map[string]any {
	var nodes []map[string]any
	switch v := root.(type) {
	case []any:
		for _, item := range v {
			if m, ok := item.(map[string]any); ok {
				nodes = append(nodes, m)
			}
		}
	case map[string]any:
		if graph, ok := v["@graph"].([]any); ok {
			for _, item := range graph {
				if m, ok := item.(map[string]any); ok {
					nodes = append(nodes, m)
				}
			}
		}
		nodes = append(nodes, v)
	}
	return nodes
}

func mergeNode(sd *StructuredData, node map[string]any) {
	if sd.Name == "" {
		sd.Name = str(node["name"])
	}
	if sd.Telephone == "" {
		sd.Telephone = str(node["telephone"])
	}
	if sd.Email == "" {
		sd.Email = strings.ToLower(str(node["email"]))
	}
	if sd.ImageURL == "" {
		if logo := str(node["logo"]); logo != "" {
			sd.ImageURL = logo
		} else {
			sd.ImageURL = firstImage(node["image"])
		}
	}

	addr := addressOf(node)
	if addr == nil {
		return
	}
	if sd.Street == "" {
		sd.Street = str(addr["streetAddress"])
	}
	if sd.Street2 == "" {
		// Both spellings appear in the wild.
		sd.Street2 = str(addr["addressLine2"])
		if sd.Street2 == "" {
			sd.Street2 = str(addr["address2"])
		}
	}
	if sd.City == "" {
		sd.City = str(addr["addressLocality"])
	}
	if sd.State == "" {
		sd.State = str(addr["addressRegion"])
	}
	if sd.Zip == "" {
		sd.Zip = str(addr["postalCode"])
	}
}

// addressOf finds the entity's address object, directly or nested under
// location. A bare PostalAddress node is its own address.
func addressOf(node map[string]any) map[string]any {
	if a, ok := node["address"].(map[string]any); ok {
		return a
	}
	if loc, ok := node["location"].(map[string]any); ok {
		if a, ok := loc["address"].(map[string]any); ok {
			return a
		}
	}
	if str(node["@type"]) == "PostalAddress" {
		return node
	}
	return nil
}

// firstImage handles image values that are a string or an array of strings.
func firstImage(v any) string {
	switch img := v.(type) {
	case string:
		return img
	case []any:
		for _, item := range img {
			if s, ok := item.(string); ok && s != "" {
				return s
			}
		}
	}
	return ""
}

func str(v any) string {
	s, _ := v.(string)
	return strings.TrimSpace(s)
}
