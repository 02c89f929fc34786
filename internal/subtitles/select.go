package subtitles

import "sort"

// Selection is the caption track chosen by the preference cascade
type Selection struct {
	Language string
	Auto     bool
	Formats  []subtitleFormat
}

// selectTrack picks the best available caption track. Manual subtitles
// beat auto-generated captions at every tier because they are
// human-verified. The cascade:
//
//  1. requested language, manual
//  2. requested language, auto-generated
//  3. default languages in order, manual then auto per language
//  4. any manual track
//  5. any auto-generated track
//
// Returns nil when no track exists at all.
func selectTrack(manual, auto map[string][]subtitleFormat, requested string, defaults []string) *Selection {
	if requested != "" {
		if sel := pick(manual, auto, requested); sel != nil {
			return sel
		}
	}

	for _, lang := range defaults {
		if sel := pick(manual, auto, lang); sel != nil {
			return sel
		}
	}

	if lang := firstKey(manual); lang != "" {
		return &Selection{Language: lang, Auto: false, Formats: manual[lang]}
	}
	if lang := firstKey(auto); lang != "" {
		return &Selection{Language: lang, Auto: true, Formats: auto[lang]}
	}

	return nil
}

func pick(manual, auto map[string][]subtitleFormat, lang string) *Selection {
	if formats, ok := manual[lang]; ok && len(formats) > 0 {
		return &Selection{Language: lang, Auto: false, Formats: formats}
	}
	if formats, ok := auto[lang]; ok && len(formats) > 0 {
		return &Selection{Language: lang, Auto: true, Formats: formats}
	}
	return nil
}

// firstKey returns the smallest key so the "any track" fallback is
// deterministic across runs
func firstKey(m map[string][]subtitleFormat) string {
	keys := make([]string, 0, len(m))
	for k, formats := range m {
		if len(formats) > 0 {
			keys = append(keys, k)
		}
	}
	if len(keys) == 0 {
		return ""
	}
	sort.Strings(keys)
	return keys[0]
}
