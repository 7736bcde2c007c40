package model

import "strings"

// Category classifies a catalog item.
type Category string

// Known item categories. Anything unrecognized maps to CategoryOther.
const (
	CategoryAlcohol     Category = "Alcohol"
	CategoryArmor       Category = "Armor"
	CategoryArtifact    Category = "Artifact"
	CategoryBooster     Category = "Booster"
	CategoryCandy       Category = "Candy"
	CategoryCar         Category = "Car"
	CategoryClothing    Category = "Clothing"
	CategoryCollectible Category = "Collectible"
	CategoryDrug        Category = "Drug"
	CategoryEnergyDrink Category = "Energy Drink"
	CategoryEnhancer    Category = "Enhancer"
	CategoryFlower      Category = "Flower"
	CategoryJewelry     Category = "Jewelry"
	CategoryMaterial    Category = "Material"
	CategoryMedical     Category = "Medical"
	CategoryMelee       Category = "Melee"
	CategoryOther       Category = "Other"
	CategoryPlushie     Category = "Plushie"
	CategoryPrimary     Category = "Primary"
	CategorySecondary   Category = "Secondary"
	CategorySpecial     Category = "Special"
	CategorySupplyPack  Category = "Supply Pack"
	CategoryTemporary   Category = "Temporary"
	CategoryTool        Category = "Tool"
)

// Categories lists every known category in display order.
var Categories = []Category{
	CategoryAlcohol, CategoryArmor, CategoryArtifact, CategoryBooster,
	CategoryCandy, CategoryCar, CategoryClothing, CategoryCollectible,
	CategoryDrug, CategoryEnergyDrink, CategoryEnhancer, CategoryFlower,
	CategoryJewelry, CategoryMaterial, CategoryMedical, CategoryMelee,
	CategoryOther, CategoryPlushie, CategoryPrimary, CategorySecondary,
	CategorySpecial, CategorySupplyPack, CategoryTemporary, CategoryTool,
}

// substring rules applied in order when no exact category name matches.
var categoryHints = []struct {
	hint string
	cat  Category
}{
	{"primary", CategoryPrimary},
	{"secondary", CategorySecondary},
	{"melee", CategoryMelee},
	{"medical", CategoryMedical},
	{"drug", CategoryDrug},
	{"booster", CategoryBooster},
	{"candy", CategoryCandy},
	{"plush", CategoryPlushie},
	{"flower", CategoryFlower},
	{"alcohol", CategoryAlcohol},
	{"energy", CategoryEnergyDrink},
	{"tool", CategoryTool},
	{"armor", CategoryArmor},
	{"clothing", CategoryClothing},
	{"material", CategoryMaterial},
	{"temporary", CategoryTemporary},
	{"collect", CategoryCollectible},
	{"special", CategorySpecial},
	{"supply", CategorySupplyPack},
	{"enhancer", CategoryEnhancer},
	{"jewel", CategoryJewelry},
	{"artifact", CategoryArtifact},
	{"car", CategoryCar},
}

// GuessCategory maps a free-form item type string to a known category.
// Exact (case-insensitive) matches win; otherwise the first substring
// hint applies; empty or unrecognized input yields CategoryOther.
func GuessCategory(raw string) Category {
	s := strings.TrimSpace(raw)
	if s == "" {
		return CategoryOther
	}
	lc := strings.ToLower(s)
	for _, c := range Categories {
		if strings.ToLower(string(c)) == lc {
			return c
		}
	}
	for _, h := range categoryHints {
		if strings.Contains(lc, h.hint) {
			return h.cat
		}
	}
	return CategoryOther
}
