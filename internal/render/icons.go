package render

import "html/template"

// iconPaths holds 24x24 outline icon paths.
var iconPaths = map[string]string{
	"home":      "m2.25 12 8.954-8.955c.44-.439 1.152-.439 1.591 0L21.75 12M4.5 9.75v10.125c0 .621.504 1.125 1.125 1.125H9.75v-4.875c0-.621.504-1.125 1.125-1.125h2.25c.621 0 1.125.504 1.125 1.125V21h4.125c.621 0 1.125-.504 1.125-1.125V9.75M8.25 21h8.25",
	"chevron":   "m19.5 8.25-7.5 7.5-7.5-7.5",
	"sun":       "M12 3v2.25m6.364.386-1.591 1.591M21 12h-2.25m-.386 6.364-1.591-1.591M12 18.75V21m-4.773-4.227-1.591 1.591M5.25 12H3m4.227-4.773L5.636 5.636M15.75 12a3.75 3.75 0 1 1-7.5 0 3.75 3.75 0 0 1 7.5 0Z",
	"moon":      "M21.752 15.002A9.72 9.72 0 0 1 18 15.75c-5.385 0-9.75-4.365-9.75-9.75 0-1.33.266-2.597.748-3.752A9.753 9.753 0 0 0 3 11.25C3 16.635 7.365 21 12.75 21a9.753 9.753 0 0 0 9.002-5.998Z",
	"minus":     "M5 12h14",
	"plus":      "M12 4.5v15m7.5-7.5h-15",
	"scale":     "M12 3v18M5 7h14M5 7l-3 7a3 3 0 0 0 6 0ZM19 7l-3 7a3 3 0 0 0 6 0Z",
	"download":  "M3 16.5v2.25A2.25 2.25 0 0 0 5.25 21h13.5A2.25 2.25 0 0 0 21 18.75V16.5M16.5 12 12 16.5m0 0L7.5 12m4.5 4.5V3",
	"print":     "M6 9V3h12v6M6 18H4a1 1 0 0 1-1-1v-6a2 2 0 0 1 2-2h14a2 2 0 0 1 2 2v6a1 1 0 0 1-1 1h-2M6 14h12v7H6Z",
	"reset":     "M16.023 9.348h4.992v-.001M2.985 19.644v-4.992m0 0h4.992m-4.993 0 3.181 3.183a8.25 8.25 0 0 0 13.803-3.7M4.031 9.865a8.25 8.25 0 0 1 13.803-3.7l3.181 3.182m0-4.991v4.99",
	"eye":       "M2.036 12.322a1.012 1.012 0 0 1 0-.639C3.423 7.51 7.36 4.5 12 4.5c4.638 0 8.573 3.007 9.963 7.178.07.207.07.431 0 .639C20.577 16.49 16.64 19.5 12 19.5c-4.638 0-8.573-3.007-9.963-7.178ZM15 12a3 3 0 1 1-6 0 3 3 0 0 1 6 0Z",
	"eyeSlash":  "M2.036 12.322a1.012 1.012 0 0 1 0-.639C3.423 7.51 7.36 4.5 12 4.5c4.638 0 8.573 3.007 9.963 7.178.07.207.07.431 0 .639C20.577 16.49 16.64 19.5 12 19.5c-4.638 0-8.573-3.007-9.963-7.178ZM3 3l18 18",
	"check":     "m4.5 12.75 6 6 9-13.5",
	"back":      "M9 15 3 9m0 0 6-6M3 9h12a6 6 0 0 1 0 12h-3",
	"bulb":      "M9 18h6M10 21h4M12 3a6 6 0 0 0-4 10.5c.6.6 1 1.4 1 2.5h6c0-1.1.4-1.9 1-2.5A6 6 0 0 0 12 3Z",
	"users":     "M16 19v-1a4 4 0 0 0-4-4H7a4 4 0 0 0-4 4v1M9.5 10a3 3 0 1 0 0-6 3 3 0 0 0 0 6ZM21 19v-1a4 4 0 0 0-3-3.9M15 4.1a3 3 0 0 1 0 5.8",
	"bag":       "M6 7h12l1 14H5ZM9 7V5a3 3 0 0 1 6 0v2",
	"book":      "M12 6.5C10 5 7 4.5 3 5v14c4-.5 7 0 9 1.5 2-1.5 5-2 9-1.5V5c-4-.5-7 0-9 1.5ZM12 6.5V20",
	"photo":     "M3 5h18v14H3ZM3 16l5-5 4 4 3-3 6 6M15.5 9.5h.01",
	"clipboard": "M9 4h6v3H9ZM7 5H5v16h14V5h-2M9 13l2 2 4-4",
	"gift":      "M3 9h18v4H3ZM5 13v8h14v-8M12 9v12M12 9c-2 0-4-1-4-3s2-2 4 3c2-5 4-5 4-3s-2 3-4 3",
	"cap":       "M12 4 2 9l10 5 10-5ZM6 11v5c3 2 9 2 12 0v-5",
	"chat":      "M4 5h16v11H9l-5 4Z",
	"lifebuoy":  "M12 21a9 9 0 1 0 0-18 9 9 0 0 0 0 18ZM12 16a4 4 0 1 0 0-8 4 4 0 0 0 0 8ZM5.6 5.6l3.6 3.6M14.8 14.8l3.6 3.6M18.4 5.6l-3.6 3.6M9.2 14.8l-3.6 3.6",
	"yarn":      "M12 21a9 9 0 1 0 0-18 9 9 0 0 0 0 18ZM5 8c4 0 10 4 12 10M4 13c4 0 7 2 8 7M9 3.5c3 2 8 7 11 9",
	"needles":   "M4 20 18 6M6 22 20 8M18 6l2-2M20 8l2-2",
	"ruler":     "M3 17 17 3l4 4L7 21ZM7 13l2 2M10 10l2 2M13 7l2 2",
	"pencil":    "M16.9 3.1a2.1 2.1 0 0 1 3 3L7.5 18.5 3 21l2.5-4.5Z",
}

// icon returns an inline svg. Unknown names get the pencil.
func icon(name string) template.HTML {
	d, ok := iconPaths[name]
	if !ok {
		d = iconPaths["pencil"]
	}
	return template.HTML(`<svg class="pv-icon" xmlns="http://www.w3.org/2000/svg" fill="none" viewBox="0 0 24 24" stroke-width="1.5" stroke="currentColor" aria-hidden="true" focusable="false"><path stroke-linecap="round" stroke-linejoin="round" d="` + d + `"/></svg>`)
}
