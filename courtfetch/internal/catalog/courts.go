package catalog

import "sort"

// DefaultCourt is the court preselected when a row names none.
const DefaultCourt = "Bombay High Court"

// highCourts maps portal display names to sess_state_code values.
var highCourts = map[string]string{
	"Allahabad High Court":               "13",
	"Bombay High Court":                  "1",
	"Calcutta High Court":                "16",
	"Gauhati High Court":                 "6",
	"High Court  for State of Telangana": "29",
	"High Court of Andhra Pradesh":       "2",
	"High Court of Chhattisgarh":         "17",
	"High Court of Delhi":                "26",
	"High Court of Gujarat":              "18",
	"High Court of Himachal Pradesh":     "5",
	"High Court of Jammu and Kashmir":    "12",
	"High Court of Jharkhand":            "7",
	"High Court of Karnataka":            "3",
	"High Court of Kerala":               "4",
	"High Court of Madhya Pradesh":       "23",
	"High Court of Manipur":              "25",
	"High Court of Meghalaya":            "21",
	"High Court of Orissa":               "11",
	"High Court of Punjab and Haryana":   "22",
	"High Court of Rajasthan":            "9",
	"High Court of Sikkim":               "24",
	"High Court of Tripura":              "20",
	"High Court of Uttarakhand":          "15",
	"Madras High Court":                  "10",
	"Patna High Court":                   "8",
}

// benchesByCourt maps a sess_state_code to bench display names and their
// court_complex_code values. Courts missing here take the bench name as
// the code.
var benchesByCourt = map[string]map[string]string{
	"1": {
		"Appellate Side,Bombay":               "1",
		"Bench at Aurangabad":                 "3",
		"Bench at Nagpur":                     "4",
		"Bombay High Court,Bench at Kolhapur": "7",
		"High court of Bombay at Goa":         "5",
		"Original Side,Bombay":                "2",
		"Special Court (TORTS) Bombay":        "6",
	},
}

// Court is a High Court as listed by the portal.
type Court struct {
	Name string `json:"name"`
	Code string `json:"code"`
}

// Bench is a court complex within a High Court.
type Bench struct {
	Name string `json:"name"`
	Code string `json:"code"`
}

// Courts lists every known High Court, sorted by name.
func Courts() []Court {
	out := make([]Court, 0, len(highCourts))
	for name, code := range highCourts {
		out = append(out, Court{Name: name, Code: code})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// CourtCode returns the sess_state_code for a court name.
func CourtCode(name string) (string, bool) {
	code, ok := highCourts[name]
	return code, ok
}

// Benches lists the configured benches of a court, sorted by name. Nil
// means the court has no bench table.
func Benches(courtCode string) []Bench {
	m, ok := benchesByCourt[courtCode]
	if !ok {
		return nil
	}
	out := make([]Bench, 0, len(m))
	for name, code := range m {
		out = append(out, Bench{Name: name, Code: code})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
