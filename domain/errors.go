package domain

import (
	"errors"
	"fmt"
	"time"
)

// Rejection reasons the ingestion pipeline can surface to the submitter.
// Handlers translate these into HTTP status codes; services never decide
// HTTP-facing behavior themselves.
var (
	ErrMissingShopID     = errors.New("shop_id обязателен")
	ErrNoAudioFile       = errors.New("аудио-файл не загружен")
	ErrAudioUnreadable   = errors.New("не удалось определить длительность аудио")
	ErrAudioTooShort     = errors.New("аудио слишком короткое")
	ErrAudioTooLong      = errors.New("аудио слишком длинное")
	ErrEmptyTranscript   = errors.New("аудио не содержит речи или не распознано")
	ErrStorageFailure    = errors.New("ошибка загрузки аудио в хранилище")
	ErrSaveFailure       = errors.New("ошибка сохранения в базу")
	ErrNotFound          = errors.New("запись не найдена")
	ErrDisallowedFile    = errors.New("недопустимый тип файла")
	ErrFileTooLarge      = errors.New("файл слишком большой")
)

// RateLimitedError carries the machine-readable reason code and a retry
// hint for the 429 response contract.
type RateLimitedError struct {
	Reason     string
	RetryAfter time.Duration
}

func (e *RateLimitedError) Error() string {
	wait := int(e.RetryAfter.Seconds() + 0.999)
	if wait < 1 {
		wait = 1
	}
	return fmt.Sprintf("слишком много запросов, повторите через %d сек", wait)
}

// Rate limit reason codes.
const (
	RateReasonIPWindow     = "rate_ip_window"
	RateReasonDeviceWindow = "rate_device_window"
	RateReasonMinInterval  = "rate_min_interval"
)
