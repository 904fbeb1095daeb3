package storage

import (
	"context"
	"io"
)

// UploadParams описывает загружаемый файл. Prefix — логический путь
// ("tournaments/7/logo"); конечный ключ формирует загрузчик.
type UploadParams struct {
	Prefix      string
	Body        io.Reader
	Size        int64
	ContentType string
}

type FileUploader interface {
	// Upload сохраняет файл и возвращает ключ объекта.
	Upload(ctx context.Context, params UploadParams) (string, error)

	Delete(ctx context.Context, key string) error

	PublicURL(key string) string
}
