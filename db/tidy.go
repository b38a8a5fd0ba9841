package db

import (
	"os"
	"path/filepath"

	sb "github.com/huandu/go-sqlbuilder"
	log "github.com/sirupsen/logrus"
)

// Tidy removes audio files in the artifact directory that no episode row
// references. Such orphans can appear when the process dies between an
// artifact rename and the episode insert; rows never reference missing
// files, but files may outlive a failed insert.
func Tidy(database string, audioDir string) error {
	db, err := writeConnection(database)
	if err != nil {
		return err
	}
	defer db.Close()

	selectPaths := sb.NewSelectBuilder()
	selectPaths.Select("audio_path").From("episodes").Where(selectPaths.IsNotNull("audio_path"))
	query, args := selectPaths.BuildWithFlavor(sb.SQLite)

	rows, err := db.Query(query, args...)
	if err != nil {
		return err
	}
	defer rows.Close()

	referenced := map[string]bool{}
	for rows.Next() {
		var path string
		if err := rows.Scan(&path); err != nil {
			return err
		}
		referenced[path] = true
	}
	if err := rows.Err(); err != nil {
		return err
	}

	entries, err := os.ReadDir(audioDir)
	if err != nil {
		return err
	}

	removed := 0
	for _, entry := range entries {
		if entry.IsDir() || referenced[entry.Name()] {
			continue
		}
		if err := os.Remove(filepath.Join(audioDir, entry.Name())); err != nil {
			log.WithFields(log.Fields{
				"file":  entry.Name(),
				"error": err,
			}).Error("Could not remove orphaned artifact")
			continue
		}
		removed++
	}

	log.WithFields(log.Fields{
		"referenced": len(referenced),
		"removed":    removed,
	}).Info("Tidied artifact directory")

	return nil
}
