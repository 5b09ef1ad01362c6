package spclient

import (
	"encoding/json"
	"fmt"
	"strings"

	"spmigrate/domain/sharepoint"
)

// LayoutFields are selected from the master page gallery
const LayoutFields = "Title,FileLeafRef,FileRef,ContentTypeId,PublishingAssociatedContentType,PublishingHidden"

// WebFields are selected when reading the source web
const WebFields = "Id,Title,Url,ServerRelativeUrl"

// MasterPageGalleryURL is the web relative URL of the gallery holding page layouts
const MasterPageGalleryURL = "_catalogs/masterpage"

// ---------- Lite models ----------

// contentTypeIDApiData accepts both the plain string and the {"StringValue": "..."} shapes
// SharePoint uses for ContentTypeId depending on the OData mode.
type contentTypeIDApiData string

func (c *contentTypeIDApiData) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		*c = contentTypeIDApiData(s)
		return nil
	}
	var obj struct {
		StringValue string `json:"StringValue"`
	}
	if err := json.Unmarshal(b, &obj); err != nil {
		return fmt.Errorf("decode content type id: %w", err)
	}
	*c = contentTypeIDApiData(obj.StringValue)
	return nil
}

// layoutItemApiData is one master page gallery item
type layoutItemApiData struct {
	Title                           *string              `json:"Title"`
	FileLeafRef                     *string              `json:"FileLeafRef"`
	FileRef                         *string              `json:"FileRef"`
	ContentTypeID                   contentTypeIDApiData `json:"ContentTypeId"`
	PublishingAssociatedContentType *string              `json:"PublishingAssociatedContentType"`
	PublishingHidden                *bool                `json:"PublishingHidden"`
}

// WebInfo holds the basic properties of a web
type WebInfo struct {
	ID                string `json:"Id"`
	Title             string `json:"Title"`
	URL               string `json:"Url"`
	ServerRelativeURL string `json:"ServerRelativeUrl"`
}

// DecodePageLayouts turns a normalized master page gallery response into layout descriptors.
// Items that are not page layouts, or are hidden from authors, are dropped.
func DecodePageLayouts(data []byte) ([]*sharepoint.LayoutDescriptor, error) {
	var items []layoutItemApiData
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, fmt.Errorf("decode page layouts: %w", err)
	}

	layouts := make([]*sharepoint.LayoutDescriptor, 0, len(items))
	for _, item := range items {
		if !isPageLayout(string(item.ContentTypeID)) {
			continue
		}
		if item.PublishingHidden != nil && *item.PublishingHidden {
			continue
		}

		name, id := sharepoint.ParseAssociatedContentType(ptrOrEmpty(item.PublishingAssociatedContentType))
		fileName := ptrOrEmpty(item.FileLeafRef)
		layouts = append(layouts, &sharepoint.LayoutDescriptor{
			Name:                    fileName,
			Title:                   firstNonEmpty(ptrOrEmpty(item.Title), strings.TrimSuffix(fileName, ".aspx")),
			ServerRelativeURL:       ptrOrEmpty(item.FileRef),
			AssociatedContentType:   name,
			AssociatedContentTypeID: id,
		})
	}
	return layouts, nil
}

func isPageLayout(contentTypeID string) bool {
	return strings.HasPrefix(strings.ToUpper(contentTypeID), strings.ToUpper(sharepoint.PageLayoutContentTypeID))
}

func ptrOrEmpty(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
