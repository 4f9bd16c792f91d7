package migrations

import (
	"context"

	"github.com/leetsync/leetsync/internal/db"
	"github.com/leetsync/leetsync/internal/models"
)

func init() {
	Data.AddMigration("001_default_settings", d001{})
}

type d001 struct{}

var defaultSettings = [][2]string{
	{"repo.branch", "main"},
	{"commit.path_template", "{{difficulty}}/{{id}}-{{slug}}"},
	{"commit.message_template", "AC {{id}}. {{title}} [{{difficulty}}] ({{language}})"},
	{"sync.skip_duplicates", "true"},
}

func (m d001) Apply(ctx context.Context, conn *db.DB) error {
	store := models.NewSettingStore(conn, "leetsync_setting")
	if err := store.Init(ctx); err != nil {
		return err
	}
	for _, setting := range defaultSettings {
		if err := store.SetByKey(ctx, setting[0], setting[1]); err != nil {
			return err
		}
	}
	return nil
}

func (m d001) Unapply(ctx context.Context, conn *db.DB) error {
	store := models.NewSettingStore(conn, "leetsync_setting")
	if err := store.Init(ctx); err != nil {
		return err
	}
	for _, setting := range defaultSettings {
		if err := store.DeleteByKey(ctx, setting[0]); err != nil {
			return err
		}
	}
	return nil
}
