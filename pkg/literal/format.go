package literal

import (
	"fmt"
	"strconv"
	"time"

	"github.com/neo4j-labs/neosemantics-sub002/pkg/namespace"
	"github.com/neo4j-labs/neosemantics-sub002/pkg/storage"
)

// Lexical is the inverse of Coerce for native values: it returns the lexical
// form and XSD datatype of v. Strings are returned as xsd:string; callers
// split "@lang" and "^^datatype" suffixes themselves.
func Lexical(v any) (lexical, datatype string) {
	switch x := v.(type) {
	case string:
		return x, namespace.XSD + "string"
	case int64:
		return strconv.FormatInt(x, 10), namespace.XSD + "long"
	case float64:
		return strconv.FormatFloat(x, 'g', -1, 64), namespace.XSD + "double"
	case bool:
		return strconv.FormatBool(x), namespace.XSD + "boolean"
	case storage.Date:
		return x.String(), namespace.XSD + "date"
	case time.Time:
		return x.Format(time.RFC3339Nano), namespace.XSD + "dateTime"
	}
	return fmt.Sprint(v), namespace.XSD + "string"
}
