package services

import (
	"fmt"

	"tahadi/models"

	"gorm.io/gorm"
)

type CategoryService struct {
	db *gorm.DB
}

func NewCategoryService(db *gorm.DB) *CategoryService {
	return &CategoryService{db: db}
}

func (s *CategoryService) ListCategories() ([]models.Category, error) {
	var categories []models.Category
	err := s.db.Order("\"group\", id").Find(&categories).Error
	return categories, err
}

// GetByIDs resolves category slugs to full records and rejects unknown ids so
// a board is never built against a category the stock cannot serve.
func (s *CategoryService) GetByIDs(ids []string) ([]models.Category, error) {
	var categories []models.Category
	if err := s.db.Where("id IN ?", ids).Find(&categories).Error; err != nil {
		return nil, err
	}

	byID := make(map[string]models.Category, len(categories))
	for _, cat := range categories {
		byID[cat.ID] = cat
	}

	ordered := make([]models.Category, 0, len(ids))
	for _, id := range ids {
		cat, ok := byID[id]
		if !ok {
			return nil, fmt.Errorf("unknown category: %s", id)
		}
		ordered = append(ordered, cat)
	}
	return ordered, nil
}

const defaultCategoryPrompt = "تعليمات إضافية لهذه الفئة: ركز على المعلومات الأكثر إثارة للاهتمام."

// SeedDefaults loads the category catalog on first boot. Existing rows are
// left untouched so name/prompt edits survive restarts.
func (s *CategoryService) SeedDefaults() error {
	var count int64
	if err := s.db.Model(&models.Category{}).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	catalog := defaultCatalog()
	return s.db.CreateInBatches(catalog, 50).Error
}

func defaultCatalog() []models.Category {
	metas := []struct {
		id, name, group string
	}{
		{"trending_songs", "أغاني تريند", "موسيقى"},
		{"spacetoon_songs", "أغاني سبيستون", "موسيقى"},
		{"egyptian_movies", "أفلام مصرية", "دراما وأفلام"},
		{"syrian_series_general", "مسلسلات سورية", "دراما وأفلام"},
		{"ramadan_drama", "دراما رمضان", "دراما وأفلام"},
		{"bab_al_hara", "باب الحارة", "دراما وأفلام"},
		{"list_drama", "تعداد درامي ⏳", "دراما وأفلام"},
		{"quran_krim", "القرآن الكريم", "إسلاميات"},
		{"hadith_sharif", "الحديث النبوي", "إسلاميات"},
		{"companions_stories", "الصحابة والخلفاء", "إسلاميات"},
		{"list_islam", "تعداد إسلامي ⏳", "إسلاميات"},
		{"general_science", "علوم عامة", "العلوم والتكنولوجيا"},
		{"astronomy", "علم الفلك", "العلوم والتكنولوجيا"},
		{"human_body", "جسم الإنسان", "العلوم والتكنولوجيا"},
		{"ai_tech", "الذكاء الاصطناعي", "العلوم والتكنولوجيا"},
		{"list_science", "تعداد علمي ⏳", "العلوم والتكنولوجيا"},
		{"one_piece", "One Piece", "أنمي"},
		{"naruto", "Naruto", "أنمي"},
		{"conan", "المحقق كونان", "أنمي"},
		{"tom_jerry", "توم وجيري", "أنمي"},
		{"list_anime", "تعداد أنمي ⏳", "أنمي"},
		{"marvel", "Marvel", "أفلام وترفيه"},
		{"starwars", "Star Wars", "أفلام وترفيه"},
		{"general_knowledge", "معلومات عامة", "منوعات"},
	}

	catalog := make([]models.Category, len(metas))
	for i, meta := range metas {
		catalog[i] = models.Category{
			ID:     meta.id,
			Name:   meta.name,
			Group:  meta.group,
			Prompt: defaultCategoryPrompt,
		}
	}
	return catalog
}
