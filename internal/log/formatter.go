package log

import (
	"fmt"
	"path"
	"sort"
	"strings"

	"github.com/sirupsen/logrus"
)

// formatter renders entries through a pattern with the placeholders %time,
// %level, %field, %msg, %caller and %func.
type formatter struct {
	pattern string
	time    string
}

func (f *formatter) Format(entry *logrus.Entry) ([]byte, error) {
	r := strings.NewReplacer(
		"%time", entry.Time.Format(f.time),
		"%level", strings.ToUpper(entry.Level.String()),
		"%field", buildFields(entry),
		"%msg", entry.Message,
		"%caller", caller(entry),
		"%func", function(entry),
	)
	return []byte(r.Replace(f.pattern)), nil
}

// caller is package/file.go:line, or "-" when caller reporting is off.
func caller(entry *logrus.Entry) string {
	if !entry.HasCaller() {
		return "-"
	}
	pkg := ""
	if fn := entry.Caller.Function; fn != "" {
		// github.com/x/y/pkg.(*T).Method -> pkg
		base := fn[strings.LastIndex(fn, "/")+1:]
		pkg, _, _ = strings.Cut(base, ".")
	}
	return fmt.Sprintf("%s/%s:%d", pkg, path.Base(entry.Caller.File), entry.Caller.Line)
}

func function(entry *logrus.Entry) string {
	if !entry.HasCaller() {
		return "-"
	}
	fn := entry.Caller.Function
	return fn[strings.LastIndex(fn, ".")+1:]
}

// buildFields renders the entry fields as key=value pairs sorted by key.
func buildFields(entry *logrus.Entry) string {
	keys := make([]string, 0, len(entry.Data))
	for k := range entry.Data {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	fields := make([]string, 0, len(keys))
	for _, k := range keys {
		val := entry.Data[k]
		stringVal, ok := val.(string)
		if !ok {
			stringVal = fmt.Sprint(val)
		}
		fields = append(fields, k+"="+stringVal)
	}
	return strings.Join(fields, ",")
}
