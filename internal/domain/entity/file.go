package entity

// UploadedFile is one document received from the user, held in memory for
// the duration of a processing session.
type UploadedFile struct {
	Filename string
	Mimetype string
	Data     []byte
}
