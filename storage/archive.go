package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/Dosada05/knockout-cup/models"
)

// BracketArchiver stores a JSON snapshot of a bracket before it is deleted.
type BracketArchiver struct {
	uploader FileUploader
	prefix   string
	now      func() time.Time
}

func NewBracketArchiver(uploader FileUploader, prefix string) *BracketArchiver {
	if prefix == "" {
		prefix = "brackets"
	}
	return &BracketArchiver{uploader: uploader, prefix: prefix, now: time.Now}
}

type bracketSnapshot struct {
	ArchivedAt time.Time       `json:"archived_at"`
	Bracket    *models.Bracket `json:"bracket"`
}

// Archive uploads the snapshot under <prefix>/<tournament id>/<unix>.json.
func (a *BracketArchiver) Archive(ctx context.Context, bracket *models.Bracket) (*UploadResult, error) {
	if bracket == nil || bracket.Tournament == nil {
		return nil, fmt.Errorf("bracket snapshot has no tournament")
	}
	now := a.now().UTC()
	body, err := json.Marshal(bracketSnapshot{ArchivedAt: now, Bracket: bracket})
	if err != nil {
		return nil, fmt.Errorf("failed to encode bracket snapshot: %w", err)
	}
	key := fmt.Sprintf("%s/%s/%d.json", a.prefix, bracket.Tournament.ID, now.Unix())
	return a.uploader.Upload(ctx, key, "application/json", bytes.NewReader(body))
}
