package utils

import (
	"path"
	"strings"
)

// checked in order, the first fragment contained in the content type wins
var contentTypeExtensions = []struct {
	fragments []string
	ext       string
}{
	{[]string{"jpeg", "jpg"}, ".jpg"},
	{[]string{"png"}, ".png"},
	{[]string{"svg"}, ".svg"},
	{[]string{"gif"}, ".gif"},
	{[]string{"webp"}, ".webp"},
	{[]string{"heif", "heic"}, ".heic"},
	{[]string{"pdf"}, ".pdf"},
	{[]string{"wordprocessingml", "msword"}, ".docx"},
	{[]string{"spreadsheetml", "ms-excel"}, ".xlsx"},
	{[]string{"presentationml", "ms-powerpoint"}, ".pptx"},
	{[]string{"text/csv"}, ".csv"},
	{[]string{"text/calendar"}, ".ics"},
	{[]string{"vcard"}, ".vcf"},
	{[]string{"text/plain"}, ".txt"},
	{[]string{"text/html"}, ".html"},
	{[]string{"json"}, ".json"},
	{[]string{"xml"}, ".xml"},
	{[]string{"zip", "compressed"}, ".zip"},
	{[]string{"message/rfc822"}, ".eml"},
}

// FileExtension returns the extension of filename, or one derived from the
// content type. Empty when neither gives one.
func FileExtension(filename, contentType string) string {
	if ext := strings.ToLower(path.Ext(filename)); ext != "" && ext != "." {
		return ext
	}
	contentType = strings.ToLower(contentType)
	for _, entry := range contentTypeExtensions {
		for _, fragment := range entry.fragments {
			if strings.Contains(contentType, fragment) {
				return entry.ext
			}
		}
	}
	return ""
}
