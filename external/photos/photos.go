package photos

import "time"

// ImageTypes maps the accepted upload content types to the file extension
// used for the stored filename.
var ImageTypes = map[string]string{
	"image/jpeg": "jpg",
	"image/png":  "png",
}

const (
	FormImage      = "image"
	FormBusinessID = "businessId"
	FormCaption    = "caption"

	MediaPath = "/media/photos"
)

// PhotoSchema is the body that must accompany every upload.
type PhotoSchema struct {
	BusinessID string `json:"businessId" form:"businessId" validate:"required,max=128"`
	Caption    string `json:"caption,omitempty" form:"caption" validate:"max=1024"`
}

type PhotoRecord struct {
	ID          string    `json:"id"`
	Filename    string    `json:"filename"`
	ContentType string    `json:"contentType"`
	BusinessID  string    `json:"businessId"`
	Caption     string    `json:"caption,omitempty"`
	Length      int64     `json:"length"`
	UploadDate  time.Time `json:"uploadDate"`
	Url         string    `json:"url"`
}

type UploadResponse struct {
	ID string `json:"id"`
}

type PhotoList struct {
	Photos []PhotoRecord `json:"photos"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}
