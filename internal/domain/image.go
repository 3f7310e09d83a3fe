package domain

// Image описывает изображение, которое хранится в S3
type Image struct {
	Bucket      string
	ObjectKey   string
	Data        []byte
	ContentType string
}

func NewImage(bucket, objectKey string, data []byte, contentType string) *Image {
	return &Image{
		Bucket:      bucket,
		ObjectKey:   objectKey,
		Data:        data,
		ContentType: contentType,
	}
}

func (i *Image) Size() int64 {
	return int64(len(i.Data))
}
