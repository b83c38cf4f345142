package repository

import "gorm.io/gorm"

// New constructs all repositories over one database handle.
func New(db *gorm.DB) *Repositories {
	return &Repositories{
		Channels:    NewChannelRepository(db),
		Streams:     NewStreamRepository(db),
		Profiles:    NewProfileRepository(db),
		EpgSources:  NewEpgSourceRepository(db),
		EpgChannels: NewEpgChannelRepository(db),
		EpgPrograms: NewEpgProgramRepository(db),
	}
}
