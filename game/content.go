package game

import (
	"fmt"
	"strings"
)

// Theme is one culture's content pool.
type Theme struct {
	ID       string
	Name     string
	Culture  string
	Objects  []string
	Places   []string
	Concepts []string
}

const defaultTheme = "classical"

var themes = map[string]Theme{
	"griot": {
		ID:      "griot",
		Name:    "Griot Tradition",
		Culture: "West African",
		Objects: []string{
			"Djembe", "Kora", "Talking Drum", "Calabash", "Cowrie Shell", "Baobab Seed",
			"Gold Weight", "Adinkra Symbol", "Shea Butter", "Kente Cloth", "Mask", "Spear",
			"Clay Pot", "Millet", "Yam", "Palm Oil", "Honey", "Ivory Tusk",
		},
		Places: []string{
			"Village Square", "Baobab Tree", "River Crossing", "Chief's Compound",
			"Market Place", "Sacred Grove", "Granary", "Blacksmith's Forge",
			"Weaving Hut", "Storytelling Circle", "Ancestral Shrine", "Water Well",
		},
		Concepts: []string{
			"Ubuntu", "Sankofa", "Asante", "Wisdom", "Community", "Rhythm",
			"Ancestry", "Harmony", "Respect", "Courage", "Unity", "Heritage",
		},
	},
	"classical": {
		ID:      "classical",
		Name:    "Classical Scholar",
		Culture: "Greek/Roman",
		Objects: []string{
			"Scroll", "Amphora", "Lyre", "Olive Branch", "Laurel Crown", "Stylus",
			"Wax Tablet", "Chiton", "Sandals", "Coin", "Shield", "Spear",
			"Wine Cup", "Oil Lamp", "Marble", "Bronze", "Papyrus", "Ink",
		},
		Places: []string{
			"Agora", "Temple", "Theater", "Academy", "Gymnasium", "Library",
			"Forum", "Basilica", "Atrium", "Peristyle", "Triclinium", "Tablinum",
			"Portico", "Stoa", "Odeon", "Stadium", "Hippodrome", "Acropolis",
		},
		Concepts: []string{
			"Wisdom", "Justice", "Courage", "Temperance", "Truth", "Beauty",
			"Virtue", "Honor", "Logic", "Rhetoric", "Philosophy", "Democracy",
			"Harmony", "Order", "Reason", "Excellence", "Glory", "Legacy",
		},
	},
	"sage": {
		ID:      "sage",
		Name:    "Eastern Sage",
		Culture: "Chinese/Buddhist",
		Objects: []string{
			"Bamboo", "Lotus", "Tea Cup", "Scroll", "Brush", "Ink Stone",
			"Jade", "Gong", "Incense", "Prayer Beads", "Fan", "Silk",
			"Porcelain", "Calligraphy", "Seal", "Compass", "Abacus", "Kite",
		},
		Places: []string{
			"Temple Garden", "Tea House", "Bamboo Grove", "Meditation Hall",
			"Pagoda", "Bridge", "Koi Pond", "Rock Garden", "Pavilion", "Courtyard",
			"Library", "Study", "Mountain Path", "Waterfall", "Pine Forest", "Monastery",
		},
		Concepts: []string{
			"Harmony", "Balance", "Mindfulness", "Compassion", "Wisdom", "Peace",
			"Flow", "Emptiness", "Enlightenment", "Patience", "Simplicity", "Unity",
			"Meditation", "Reflection", "Serenity", "Understanding", "Clarity", "Presence",
		},
	},
	"dreamtime": {
		ID:      "dreamtime",
		Name:    "Dreamtime Keeper",
		Culture: "Indigenous/Aboriginal",
		Objects: []string{
			"Boomerang", "Didgeridoo", "Ochre", "Coolamon", "Woomera", "Firestick",
			"Grinding Stone", "Water Gourd", "Spear Thrower", "Message Stick", "Clap Sticks", "Emu Feather",
			"Kangaroo Skin", "Bush Medicine", "Sacred Stone", "Honey Ant", "Witchetty Grub", "Bush Tucker",
		},
		Places: []string{
			"Waterhole", "Sacred Site", "Dreaming Track", "Rock Shelter", "Billabong", "Desert Plain",
			"Ancestor Cave", "Ceremony Ground", "Lookout Rock", "River Crossing", "Star Map", "Story Circle",
			"Honey Tree", "Medicine Place", "Wind Cave", "Sun Rock", "Moon Pool", "Spirit Tree",
		},
		Concepts: []string{
			"Dreamtime", "Songline", "Country", "Ancestor", "Spirit", "Journey",
			"Connection", "Story", "Land", "Sky", "Water", "Fire",
			"Wisdom", "Respect", "Sharing", "Belonging", "Ceremony", "Sacred",
		},
	},
}

// Category slugs used by the UI map onto theme ids.
var categoryAliases = map[string]string{
	"actually-fun-games":    "griot",
	"randomness-revolution": "classical",
	"ai-and-llms":           "sage",
	"generative-art-worlds": "dreamtime",
}

// ThemeFor resolves a cultural category or theme id, falling back to the
// classical theme for unknown input.
func ThemeFor(category string) Theme {
	key := strings.ToLower(strings.TrimSpace(category))
	if alias, ok := categoryAliases[key]; ok {
		key = alias
	}
	if t, ok := themes[key]; ok {
		return t
	}
	return themes[defaultTheme]
}

// Themes lists the registered theme ids.
func Themes() []string {
	return []string{"griot", "classical", "sage", "dreamtime"}
}

type poolEntry struct {
	name     string
	category string
}

// pool returns the theme's content in the fixed order objects, places, concepts.
// Replays depend on this order.
func (t Theme) pool() []poolEntry {
	out := make([]poolEntry, 0, len(t.Objects)+len(t.Places)+len(t.Concepts))
	for _, n := range t.Objects {
		out = append(out, poolEntry{n, "objects"})
	}
	for _, n := range t.Places {
		out = append(out, poolEntry{n, "places"})
	}
	for _, n := range t.Concepts {
		out = append(out, poolEntry{n, "concepts"})
	}
	return out
}

// PoolSize is the number of items a theme can contribute to a round.
func (t Theme) PoolSize() int {
	return len(t.Objects) + len(t.Places) + len(t.Concepts)
}

// BuildSequence shuffles the configured culture's pool with seed and keeps
// the first cfg.ItemCount items.
func BuildSequence(cfg GameConfig, seed Seed) []Item {
	theme := ThemeFor(cfg.CulturalCategory)
	shuffled := Shuffle(theme.pool(), seed)

	n := cfg.ItemCount
	if n <= 0 || n > len(shuffled) {
		n = len(shuffled)
	}

	items := make([]Item, n)
	for i := 0; i < n; i++ {
		e := shuffled[i]
		items[i] = Item{
			ID:              fmt.Sprintf("%s_%s_%d", cfg.CulturalCategory, e.category, i),
			Name:            e.name,
			Category:        e.category,
			CulturalContext: fmt.Sprintf("Traditional %s element", theme.Culture),
			Position:        i,
		}
	}
	return items
}
