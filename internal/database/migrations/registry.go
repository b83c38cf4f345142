package migrations

import (
	"github.com/plexbridge/plexbridge/internal/models"
	"gorm.io/gorm"
)

// AllMigrations returns all registered migrations in order.
// - 001: Schema creation using GORM AutoMigrate
// - 002: Seed built-in system FFmpeg profiles
func AllMigrations() []Migration {
	return []Migration{
		migration001Schema(),
		migration002SystemProfiles(),
	}
}

// migration001Schema creates all database tables using GORM AutoMigrate.
func migration001Schema() Migration {
	return Migration{
		Version:     "001",
		Description: "Create all database tables",
		Up: func(tx *gorm.DB) error {
			// AutoMigrate all models in dependency order
			return tx.AutoMigrate(
				&models.Channel{},
				&models.Stream{},
				&models.FFmpegProfile{},
				&models.EpgSource{},
				&models.EpgChannel{},
				&models.EpgProgram{},
			)
		},
		Down: func(tx *gorm.DB) error {
			tables := []string{
				"epg_programs",
				"epg_channels",
				"epg_sources",
				"ffmpeg_profiles",
				"streams",
				"channels",
			}
			for _, table := range tables {
				if tx.Migrator().HasTable(table) {
					if err := tx.Migrator().DropTable(table); err != nil {
						return err
					}
				}
			}
			return nil
		},
	}
}

// migration002SystemProfiles seeds the built-in FFmpeg profiles. The seed is
// skipped when any system profile already exists so user edits to the default
// flag survive restarts.
func migration002SystemProfiles() Migration {
	return Migration{
		Version:     "002",
		Description: "Seed system FFmpeg profiles",
		Up: func(tx *gorm.DB) error {
			var count int64
			if err := tx.Model(&models.FFmpegProfile{}).
				Where("is_system = ?", true).
				Count(&count).Error; err != nil {
				return err
			}
			if count > 0 {
				return nil
			}

			profiles := models.SystemProfiles()
			for i := range profiles {
				if err := tx.Create(&profiles[i]).Error; err != nil {
					return err
				}
			}
			return nil
		},
		Down: func(tx *gorm.DB) error {
			return tx.Where("is_system = ?", true).
				Delete(&models.FFmpegProfile{}).Error
		},
	}
}
