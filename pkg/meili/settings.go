package meili

import (
	"context"
	"fmt"
)

// Setting names as they appear in the settings routes.
const (
	settingRankingRules         = "ranking-rules"
	settingDistinctAttribute    = "distinct-attribute"
	settingSearchableAttributes = "searchable-attributes"
	settingDisplayedAttributes  = "displayed-attributes"
	settingStopWords            = "stop-words"
	settingSynonyms             = "synonyms"
	settingFilterableAttributes = "filterable-attributes"
	settingSortableAttributes   = "sortable-attributes"
	settingTypoTolerance        = "typo-tolerance"
	settingFaceting             = "faceting"
)

// GetSettings returns all settings of the index.
func (i *Index) GetSettings(ctx context.Context) (*Settings, error) {
	var result Settings
	if err := i.client.get(ctx, i.path("settings"), nil, &result); err != nil {
		return nil, fmt.Errorf("get settings for %s failed: %w", i.UID, err)
	}
	return &result, nil
}

// UpdateSettings updates the non-nil settings.
func (i *Index) UpdateSettings(ctx context.Context, settings *Settings) (*TaskInfo, error) {
	var task TaskInfo
	if err := i.client.patch(ctx, i.path("settings"), settings, &task); err != nil {
		return nil, fmt.Errorf("update settings for %s failed: %w", i.UID, err)
	}
	return &task, nil
}

// ResetSettings resets every setting to its default.
func (i *Index) ResetSettings(ctx context.Context) (*TaskInfo, error) {
	var task TaskInfo
	if err := i.client.delete(ctx, i.path("settings"), &task); err != nil {
		return nil, fmt.Errorf("reset settings for %s failed: %w", i.UID, err)
	}
	return &task, nil
}

func (i *Index) getSetting(ctx context.Context, name string, result any) error {
	if err := i.client.get(ctx, i.path("settings", name), nil, result); err != nil {
		return fmt.Errorf("get %s for %s failed: %w", name, i.UID, err)
	}
	return nil
}

func (i *Index) putSetting(ctx context.Context, name string, body any) (*TaskInfo, error) {
	var task TaskInfo
	if err := i.client.put(ctx, i.path("settings", name), nil, body, &task); err != nil {
		return nil, fmt.Errorf("update %s for %s failed: %w", name, i.UID, err)
	}
	return &task, nil
}

func (i *Index) patchSetting(ctx context.Context, name string, body any) (*TaskInfo, error) {
	var task TaskInfo
	if err := i.client.patch(ctx, i.path("settings", name), body, &task); err != nil {
		return nil, fmt.Errorf("update %s for %s failed: %w", name, i.UID, err)
	}
	return &task, nil
}

func (i *Index) resetSetting(ctx context.Context, name string) (*TaskInfo, error) {
	var task TaskInfo
	if err := i.client.delete(ctx, i.path("settings", name), &task); err != nil {
		return nil, fmt.Errorf("reset %s for %s failed: %w", name, i.UID, err)
	}
	return &task, nil
}

func (i *Index) getStrings(ctx context.Context, name string) ([]string, error) {
	var result []string
	if err := i.getSetting(ctx, name, &result); err != nil {
		return nil, err
	}
	return result, nil
}

func (i *Index) GetRankingRules(ctx context.Context) ([]string, error) {
	return i.getStrings(ctx, settingRankingRules)
}

func (i *Index) UpdateRankingRules(ctx context.Context, rules []string) (*TaskInfo, error) {
	return i.putSetting(ctx, settingRankingRules, rules)
}

func (i *Index) ResetRankingRules(ctx context.Context) (*TaskInfo, error) {
	return i.resetSetting(ctx, settingRankingRules)
}

// GetDistinctAttribute returns the distinct attribute, or "" when none is set.
func (i *Index) GetDistinctAttribute(ctx context.Context) (string, error) {
	var result *string
	if err := i.getSetting(ctx, settingDistinctAttribute, &result); err != nil {
		return "", err
	}
	if result == nil {
		return "", nil
	}
	return *result, nil
}

func (i *Index) UpdateDistinctAttribute(ctx context.Context, attribute string) (*TaskInfo, error) {
	return i.putSetting(ctx, settingDistinctAttribute, attribute)
}

func (i *Index) ResetDistinctAttribute(ctx context.Context) (*TaskInfo, error) {
	return i.resetSetting(ctx, settingDistinctAttribute)
}

func (i *Index) GetSearchableAttributes(ctx context.Context) ([]string, error) {
	return i.getStrings(ctx, settingSearchableAttributes)
}

func (i *Index) UpdateSearchableAttributes(ctx context.Context, attributes []string) (*TaskInfo, error) {
	return i.putSetting(ctx, settingSearchableAttributes, attributes)
}

func (i *Index) ResetSearchableAttributes(ctx context.Context) (*TaskInfo, error) {
	return i.resetSetting(ctx, settingSearchableAttributes)
}

func (i *Index) GetDisplayedAttributes(ctx context.Context) ([]string, error) {
	return i.getStrings(ctx, settingDisplayedAttributes)
}

func (i *Index) UpdateDisplayedAttributes(ctx context.Context, attributes []string) (*TaskInfo, error) {
	return i.putSetting(ctx, settingDisplayedAttributes, attributes)
}

func (i *Index) ResetDisplayedAttributes(ctx context.Context) (*TaskInfo, error) {
	return i.resetSetting(ctx, settingDisplayedAttributes)
}

func (i *Index) GetStopWords(ctx context.Context) ([]string, error) {
	return i.getStrings(ctx, settingStopWords)
}

func (i *Index) UpdateStopWords(ctx context.Context, words []string) (*TaskInfo, error) {
	return i.putSetting(ctx, settingStopWords, words)
}

func (i *Index) ResetStopWords(ctx context.Context) (*TaskInfo, error) {
	return i.resetSetting(ctx, settingStopWords)
}

func (i *Index) GetSynonyms(ctx context.Context) (map[string][]string, error) {
	var result map[string][]string
	if err := i.getSetting(ctx, settingSynonyms, &result); err != nil {
		return nil, err
	}
	return result, nil
}

func (i *Index) UpdateSynonyms(ctx context.Context, synonyms map[string][]string) (*TaskInfo, error) {
	return i.putSetting(ctx, settingSynonyms, synonyms)
}

func (i *Index) ResetSynonyms(ctx context.Context) (*TaskInfo, error) {
	return i.resetSetting(ctx, settingSynonyms)
}

func (i *Index) GetFilterableAttributes(ctx context.Context) ([]string, error) {
	return i.getStrings(ctx, settingFilterableAttributes)
}

func (i *Index) UpdateFilterableAttributes(ctx context.Context, attributes []string) (*TaskInfo, error) {
	return i.putSetting(ctx, settingFilterableAttributes, attributes)
}

func (i *Index) ResetFilterableAttributes(ctx context.Context) (*TaskInfo, error) {
	return i.resetSetting(ctx, settingFilterableAttributes)
}

func (i *Index) GetSortableAttributes(ctx context.Context) ([]string, error) {
	return i.getStrings(ctx, settingSortableAttributes)
}

func (i *Index) UpdateSortableAttributes(ctx context.Context, attributes []string) (*TaskInfo, error) {
	return i.putSetting(ctx, settingSortableAttributes, attributes)
}

func (i *Index) ResetSortableAttributes(ctx context.Context) (*TaskInfo, error) {
	return i.resetSetting(ctx, settingSortableAttributes)
}

func (i *Index) GetTypoTolerance(ctx context.Context) (*TypoTolerance, error) {
	var result TypoTolerance
	if err := i.getSetting(ctx, settingTypoTolerance, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// UpdateTypoTolerance partially updates the typo tolerance settings.
func (i *Index) UpdateTypoTolerance(ctx context.Context, typoTolerance *TypoTolerance) (*TaskInfo, error) {
	return i.patchSetting(ctx, settingTypoTolerance, typoTolerance)
}

func (i *Index) ResetTypoTolerance(ctx context.Context) (*TaskInfo, error) {
	return i.resetSetting(ctx, settingTypoTolerance)
}

func (i *Index) GetFaceting(ctx context.Context) (*Faceting, error) {
	var result Faceting
	if err := i.getSetting(ctx, settingFaceting, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// UpdateFaceting partially updates the faceting settings.
func (i *Index) UpdateFaceting(ctx context.Context, faceting *Faceting) (*TaskInfo, error) {
	return i.patchSetting(ctx, settingFaceting, faceting)
}

func (i *Index) ResetFaceting(ctx context.Context) (*TaskInfo, error) {
	return i.resetSetting(ctx, settingFaceting)
}
