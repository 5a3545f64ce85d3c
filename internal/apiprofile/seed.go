package apiprofile

import (
	"context"
	"errors"
	"log/slog"

	"qrlink/internal/linker/models"
	"qrlink/pkg/platform/sentinel"
)

// Well-known public client identities, seeded so a fresh install can open
// handshakes without any manual setup.
var defaults = []models.APIProfile{
	{Name: "Telegram Desktop", AppID: 2040, AppHash: "b18441a1ff607e10a989891a5462e627"},
	{Name: "Android", AppID: 6, AppHash: "eb06d4abfb49dc3eeb1aeb98ae0f581e"},
	{Name: "iOS", AppID: 4, AppHash: "014b35b6184100b085b0d0572f9b5103"},
	{Name: "Webogram", AppID: 2496, AppHash: "8da85b0d5bfe62527e5b244c209159c3"},
}

// Seed inserts the default profiles, skipping any that already exist.
func Seed(ctx context.Context, store Store, logger *slog.Logger) error {
	for _, d := range defaults {
		p := d
		err := store.Create(ctx, &p)
		if errors.Is(err, sentinel.ErrConflict) {
			continue
		}
		if err != nil {
			return err
		}
		logger.InfoContext(ctx, "seeded api profile", "name", p.Name, "profile_id", p.ID)
	}
	return nil
}
