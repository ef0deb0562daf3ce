package spawn

import "sort"

// templates is the fixed catalog of named default populations. Entry
// strings here must stay valid against the default species catalog.
var templates = map[string]string{
	"graveyard":      "zombie:2@false#4,skeleton:2@false#3",
	"crypt":          "skeleton:3@false#4,wither_skeleton:4@true#1",
	"spider_den":     "spider:2@false#5,cave_spider:3@false#2",
	"nether_outpost": "blaze:4@false#3,wither_skeleton:4@false#2,ghast:5@true#1",
	"raid_camp":      "pillager:3@false#4,vindicator:4@false#2,ravager:5@true#1",
	"swamp_hut":      "witch:3@false#2,slime:1@false#6",
	"deep_dark":      "enderman:5@false#3,silverfish:2@false#8",
	"ocean_ruin":     "drowned:2@false#5,guardian:4@false#2",
}

// TemplateNames returns the template catalog's names in sorted order.
func TemplateNames() []string {
	names := make([]string, 0, len(templates))
	for name := range templates {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// TemplateData returns the entry string for a template name.
func TemplateData(name string) (string, bool) {
	data, ok := templates[name]
	return data, ok
}
