package dto

import (
	"fmt"
	"net/url"
)

// AttachmentURL builds the download path for a slot. Serials contain slashes and are escaped.
func AttachmentURL(basePath, serial string, slot int) string {
	return fmt.Sprintf("%s/%s/attachments/%d", basePath, url.PathEscape(serial), slot)
}
