package models

// Default length limits for master-data fields.
const (
	DefaultKeyMaxLen         = 100
	DefaultDescriptionMaxLen = 500
)

// FieldSpec describes an extra free-text field of a master-data kind.
type FieldSpec struct {
	Name     string `json:"name"`
	Label    string `json:"label"`
	MaxLen   int    `json:"maxLength"`
	Required bool   `json:"required"`
}

// Kind parameterizes the generic master-data pipeline for one entity type.
type Kind struct {
	// Name is the dataType tag used in audit records and broadcasts.
	Name string `json:"name"`
	// Path is the URL segment under /api/admin.
	Path string `json:"path"`
	// KeyField is the JSON name of the unique human-readable key.
	KeyField string `json:"keyField"`
	// KeyLabel names the key in user-facing messages.
	KeyLabel          string      `json:"keyLabel"`
	KeyMaxLen         int         `json:"keyMaxLength"`
	DescriptionMaxLen int         `json:"descriptionMaxLength"`
	Fields            []FieldSpec `json:"fields"`
}

// Master-data kinds.
var (
	KindAPI = Kind{Name: "api", Path: "api", KeyField: "api", KeyLabel: "API"}

	KindChemical = Kind{
		Name: "chemical", Path: "chemical", KeyField: "chemicalName", KeyLabel: "Chemical",
		Fields: []FieldSpec{
			{Name: "chemicalShortName", Label: "Short name", MaxLen: 50},
			{Name: "casNumber", Label: "CAS number", MaxLen: 50},
			{Name: "grade", Label: "Grade", MaxLen: 50},
		},
	}
	KindColumn = Kind{
		Name: "column", Path: "column", KeyField: "columnCode", KeyLabel: "Column code",
		Fields: []FieldSpec{
			{Name: "make", Label: "Make", MaxLen: 100},
			{Name: "partNumber", Label: "Part number", MaxLen: 100},
			{Name: "dimensions", Label: "Dimensions", MaxLen: 100},
		},
	}

	KindDetectorType   = Kind{Name: "detectorType", Path: "detector-type", KeyField: "detectorType", KeyLabel: "Detector type"}
	KindDepartment     = Kind{Name: "department", Path: "department", KeyField: "department", KeyLabel: "Department"}
	KindMake           = Kind{Name: "make", Path: "make", KeyField: "make", KeyLabel: "Make"}
	KindPharmacopoeial = Kind{Name: "pharmacopoeial", Path: "pharmacopoeial", KeyField: "pharmacopoeial", KeyLabel: "Pharmacopoeial"}

	KindTestType = Kind{
		Name: "testType", Path: "test-type", KeyField: "testType", KeyLabel: "Test type",
		Fields: []FieldSpec{{Name: "testName", Label: "Test name", MaxLen: 100}},
	}

	KindMobilePhase = Kind{
		Name: "mobilePhase", Path: "mobile-phase", KeyField: "mobilePhaseCode", KeyLabel: "Mobile phase code",
		Fields: []FieldSpec{{Name: "composition", Label: "Composition", MaxLen: 500}},
	}

	KindHPLC = Kind{
		Name: "hplc", Path: "hplc", KeyField: "hplcCode", KeyLabel: "HPLC code",
		Fields: []FieldSpec{
			{Name: "make", Label: "Make", MaxLen: 100},
			{Name: "model", Label: "Model", MaxLen: 100},
			{Name: "serialNumber", Label: "Serial number", MaxLen: 100},
		},
	}
)

var kinds = []Kind{
	KindAPI, KindChemical, KindColumn, KindDetectorType, KindDepartment,
	KindMake, KindPharmacopoeial, KindTestType, KindMobilePhase, KindHPLC,
}

// Kinds returns every registered master-data kind with limits filled in.
func Kinds() []Kind {
	out := make([]Kind, len(kinds))
	for i, k := range kinds {
		out[i] = k.withDefaults()
	}

	return out
}

// KindByName looks up a kind by its dataType tag.
func KindByName(name string) (Kind, bool) {
	for _, k := range kinds {
		if k.Name == name {
			return k.withDefaults(), true
		}
	}

	return Kind{}, false
}

func (k Kind) withDefaults() Kind {
	if k.KeyMaxLen == 0 {
		k.KeyMaxLen = DefaultKeyMaxLen
	}
	if k.DescriptionMaxLen == 0 {
		k.DescriptionMaxLen = DefaultDescriptionMaxLen
	}
	if k.Fields == nil {
		k.Fields = []FieldSpec{}
	}

	return k
}
