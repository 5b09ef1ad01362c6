package sharepoint

import "strings"

// PageLayoutContentTypeID is the content type every publishing page layout derives from
const PageLayoutContentTypeID = "0x01010007FF3E057FA8AB4AA42FCB67B453FFC1"

// LayoutDescriptor describes a publishing page layout stored in the master page gallery
type LayoutDescriptor struct {
	Name                    string // file name, e.g. ArticleLeft.aspx
	Title                   string
	ServerRelativeURL       string
	AssociatedContentType   string // display name of the page content type
	AssociatedContentTypeID string
}

// ParseAssociatedContentType splits the PublishingAssociatedContentType field value
// (";#Article Page;#0x010100C568...;#") into its name and id.
func ParseAssociatedContentType(value string) (name, id string) {
	var parts []string
	for _, p := range strings.Split(value, ";#") {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	if len(parts) > 0 {
		name = parts[0]
	}
	if len(parts) > 1 {
		id = parts[1]
	}
	return name, id
}
