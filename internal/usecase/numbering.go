package usecase

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	orderNumberPrefix     = "ORD"
	quotationNumberPrefix = "QUO"

	// 番号の一意制約違反で作り直す回数
	maxNumberAttempts = 3
)

// ORD-20240131-1A2B3C4D
type NumberGenerator func(prefix string, now time.Time) string

func DefaultNumberGenerator(prefix string, now time.Time) string {
	return fmt.Sprintf("%s-%s-%s", prefix, now.Format("20060102"), randomSuffix())
}

func randomSuffix() string {
	hex := strings.ReplaceAll(uuid.NewString(), "-", "")
	return strings.ToUpper(hex[:8])
}
