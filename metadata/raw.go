package metadata

import (
	"fmt"
	"strings"
)

// RawParameter is one untyped parameter row as the backend catalog
// returns it.
type RawParameter struct {
	Parameter  string `json:"PARAMETER"`
	ParamClass string `json:"PARAMCLASS"` // I/E/C/T/X
	Exid       string `json:"EXID"`       // ABAP type key
	IntLength  int    `json:"INTLENGTH"`
	Decimals   int    `json:"DECIMALS"`
	Default    string `json:"DEFAULT"`
	ParamText  string `json:"PARAMTEXT"`
	TabName    string `json:"TABNAME"`
	FieldName  string `json:"FIELDNAME"`
}

// RawMetadata is the untyped backend response for one function.
type RawMetadata struct {
	FunctionName string         `json:"FUNCNAME"`
	ShortText    string         `json:"STEXT"`
	Area         string         `json:"AREA"`
	DevClass     string         `json:"DEVCLASS"`
	ReleasedOn   string         `json:"RELEASED_ON"`
	Parameters   []RawParameter `json:"PARAMETERS"`
}

// SystemInfo carries the backend identity needed for version
// classification.
type SystemInfo struct {
	Release string // e.g. "46C", "700", "754"
	SystemID string
	Host     string
}

// paramDirections maps catalog parameter classes to directions. Class X
// rows are exceptions, not parameters, and are skipped entirely.
var paramDirections = map[string]Direction{
	"I": DirectionIn,
	"E": DirectionOut,
	"C": DirectionInOut,
	"T": DirectionTable,
}

// MapABAPType renders a catalog type key as a readable type name.
func MapABAPType(exid string, length, decimals int) string {
	switch exid {
	case "C":
		return fmt.Sprintf("CHAR(%d)", length)
	case "N":
		return fmt.Sprintf("NUMC(%d)", length)
	case "D":
		return "DATE"
	case "T":
		return "TIME"
	case "X":
		return fmt.Sprintf("XSTRING(%d)", length)
	case "I":
		return fmt.Sprintf("INT(%d)", length)
	case "P":
		if decimals > 0 {
			return fmt.Sprintf("DECIMAL(%d,%d)", length, decimals)
		}
		return fmt.Sprintf("DECIMAL(%d)", length)
	case "F":
		return "FLOAT"
	case "S":
		return "STRING"
	case "G":
		return "XSTRING"
	case "u":
		return "STRUCTURE"
	default:
		return "ANY"
	}
}

// FromRaw transforms an untyped backend response into the typed model.
// Parameter order is preserved; exception rows are dropped.
func FromRaw(raw *RawMetadata, functionName, languageCode string) *FunctionMetadata {
	params := make([]ParameterDescriptor, 0, len(raw.Parameters))
	for _, rp := range raw.Parameters {
		dir, ok := paramDirections[strings.ToUpper(rp.ParamClass)]
		if !ok {
			continue
		}
		params = append(params, ParameterDescriptor{
			Name:        rp.Parameter,
			Direction:   dir,
			TypeName:    MapABAPType(rp.Exid, rp.IntLength, rp.Decimals),
			Length:      rp.IntLength,
			Decimals:    rp.Decimals,
			Description: rp.ParamText,
			Default:     rp.Default,
		})
	}

	return &FunctionMetadata{
		FunctionName:      functionName,
		LanguageCode:      languageCode,
		Description:       raw.ShortText,
		Parameters:        params,
		Area:              raw.Area,
		DevClass:          raw.DevClass,
		ReleasedOn:        raw.ReleasedOn,
		StructuralVersion: ComputeStructuralVersion(params),
	}
}
