package common

import (
	"fmt"
	"fundi/src/db"
	"fundi/src/models"
	"log"

	"github.com/gosimple/slug"
	"gorm.io/gorm"
)

// BackfillServiceSlugs stamps slugs on catalog rows imported without one.
func BackfillServiceSlugs() {
	db := db.GetDb()
	rows, err := db.
		Model(&models.Service{}).
		Where("slug IS NULL OR slug = ''").
		Rows()
	if err != nil {
		log.Printf("Error querying Services: %s\n", err.Error())
		return
	}
	if err := db.Transaction(func(tx *gorm.DB) error {
		for rows.Next() {
			var svc models.Service
			if err := tx.ScanRows(rows, &svc); err != nil {
				return err
			}
			newSlug := slug.Make(svc.Name)
			if err := tx.
				Model(&models.Service{}).
				Where("id = ?", svc.ID).
				Updates(&models.Service{Slug: fmt.Sprintf("%s-%d", newSlug, svc.ID)}).
				Error; err != nil {
				return err
			}
		}
		return nil
	}); err != nil {
		log.Printf("Error updating Services: %s\n", err.Error())
		return
	}

	prows, err := db.
		Model(&models.ProviderService{}).
		Where("slug IS NULL OR slug = ''").
		Rows()
	if err != nil {
		log.Printf("Error querying ProviderServices: %s\n", err.Error())
		return
	}
	if err := db.Transaction(func(tx *gorm.DB) error {
		for prows.Next() {
			var svc models.ProviderService
			if err := tx.ScanRows(prows, &svc); err != nil {
				return err
			}
			newSlug := slug.Make(svc.Name)
			if err := tx.
				Model(&models.ProviderService{}).
				Where("id = ?", svc.ID).
				Updates(&models.ProviderService{Slug: fmt.Sprintf("%s-%d", newSlug, svc.ID)}).
				Error; err != nil {
				return err
			}
		}
		return nil
	}); err != nil {
		log.Printf("Error updating ProviderServices: %s\n", err.Error())
	}
}
