package compensation_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/contribution-engine/compensation"
)

func testCategories() []compensation.Category {
	immigration := &compensation.MainCategory{ID: 1, Name: "Immigration Israel"}
	german := &compensation.MainCategory{ID: 2, Name: "German Citizenship"}
	austrian := &compensation.MainCategory{ID: 3, Name: "Austrian Citizenship"}
	return []compensation.Category{
		{ID: 10, Name: "Small Without Meeting", Main: immigration},
		{ID: 11, Name: "Work Visa", Main: immigration},
		{ID: 20, Name: "German Citizenship - Descendants", Main: german},
		{ID: 30, Name: "Austrian Citizenship - Section 58c", Main: austrian},
		{ID: 40, Name: "Orphan"},
	}
}

func TestFindBestMatch(t *testing.T) {
	ix := compensation.NewCategoryIndex(testCategories())

	tests := []struct {
		name   string
		text   string
		wantID int64
	}{
		{"exact", "Work Visa", 11},
		{"case and whitespace", "  work   VISA ", 11},
		{"diacritics", "Wórk Visá", 11},
		{"name with main in parentheses", "Work Visa (Immigration Israel)", 11},
		{"unknown parenthetical stripped", "Work Visa (urgent)", 11},
		{"compact", "WorkVisa", 11},
		{"truncated", "Small without meetin", 10},
		{"token overlap", "Austrian 58c", 30},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, ok := ix.FindBestMatch(tt.text)
			require.True(t, ok, "no match for %q", tt.text)
			assert.Equal(t, tt.wantID, c.ID)
		})
	}
}

func TestFindBestMatch_NoMatch(t *testing.T) {
	ix := compensation.NewCategoryIndex(testCategories())

	_, ok := ix.FindBestMatch("Qqq")
	assert.False(t, ok)

	_, ok = ix.FindBestMatch("   ")
	assert.False(t, ok)
}

func TestMainCategoryName_ResolutionOrder(t *testing.T) {
	// GIVEN: A case whose join, id and text disagree
	// WHEN: Resolving the main category
	// THEN: The joined row wins, then the id, then the free text

	ix := compensation.NewCategoryIndex(testCategories())
	cats := testCategories()

	ref := compensation.CategoryRef{Text: "Work Visa", ID: 20, Join: &cats[3]}
	assert.Equal(t, "Austrian Citizenship", ix.MainCategoryName(ref))

	ref.Join = nil
	assert.Equal(t, "German Citizenship", ix.MainCategoryName(ref))

	ref.ID = 999
	assert.Equal(t, "Immigration Israel", ix.MainCategoryName(ref))
}

func TestMainCategoryName_MainNameAsText(t *testing.T) {
	ix := compensation.NewCategoryIndex(testCategories())
	assert.Equal(t, "German Citizenship", ix.MainCategoryName(compensation.CategoryRef{Text: "german citizenship"}))
}

func TestMainCategoryName_Uncategorized(t *testing.T) {
	ix := compensation.NewCategoryIndex(testCategories())

	assert.Equal(t, compensation.Uncategorized, ix.MainCategoryName(compensation.CategoryRef{}))
	assert.Equal(t, compensation.Uncategorized, ix.MainCategoryName(compensation.CategoryRef{Text: "Qqq"}))
	// known sub-category without a parent
	assert.Equal(t, compensation.Uncategorized, ix.MainCategoryName(compensation.CategoryRef{ID: 40}))

	empty := compensation.NewCategoryIndex(nil)
	assert.Equal(t, compensation.Uncategorized, empty.MainCategoryName(compensation.CategoryRef{Text: "Work Visa"}))
}
