package help

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/zachgrayio/bkvalidate/src/core"
)

// exampleValue returns an example value for a config field based on its type.
func exampleValue(f reflect.Value, name string, t reflect.Type) string {
	if t.Kind() == reflect.Slice {
		return exampleValue(reflect.New(t.Elem()).Elem(), name, t.Elem()) + fmt.Sprintf("\n\n%s can be repeated", name)
	} else if t.Kind() == reflect.String {
		if f.String() != "" {
			return f.String()
		}
		return "<str>"
	} else if t.Kind() == reflect.Bool {
		return "true | false | yes | no | on | off"
	}
	return fmt.Sprint(f.Interface())
}

// allConfigHelp returns help for every config option, keyed by both name and section.name.
func allConfigHelp(config *core.Configuration) helpSection {
	sect := helpSection{
		Preamble: "%s is a config setting defined in the " + core.ConfigFileName + " file at the root of the workspace.",
		Topics:   map[string]string{},
	}
	v := reflect.ValueOf(config).Elem()
	t := v.Type()
	for i := 0; i < t.NumField(); i++ {
		f := v.Field(i)
		tf := t.Field(i)
		sectname := strings.ToLower(tf.Name)
		if f.Kind() != reflect.Struct {
			continue
		}
		for j := 0; j < f.NumField(); j++ {
			subt := tf.Type.Field(j)
			help := subt.Tag.Get("help")
			if help == "" {
				continue
			}
			name := strings.ToLower(subt.Name)
			help = fmt.Sprintf("[%s]\n%s = %s\n\n%s\n", sectname, name, exampleValue(f.Field(j), name, subt.Type), help)
			if env := subt.Tag.Get("var"); env != "" {
				help += fmt.Sprintf("\nThe environment variable %s overrides it.\n", env)
			}
			sect.Topics[name] = help
			sect.Topics[sectname+"."+name] = help
		}
	}
	return sect
}
