package main

import (
	"errors"
	"fmt"
	"strings"

	"Probekit/internal/config"

	"github.com/spf13/pflag"
)

// applySettings fills flags not given on the command line from the settings
// section named after the plugin.
func applySettings(fs *pflag.FlagSet, path, plugin string) error {
	if path == "" {
		return nil
	}

	loader, err := config.NewLoader(path)
	if err != nil {
		return err
	}

	var section map[string]interface{}
	if err := loader.Section(plugin, &section); err != nil {
		if errors.Is(err, config.ErrSectionMissing) {
			return nil
		}
		return err
	}

	for key, value := range section {
		flag := fs.Lookup(key)
		if flag == nil {
			return fmt.Errorf("unknown option %q in %s settings", key, plugin)
		}
		if flag.Changed {
			continue
		}
		if err := fs.Set(key, settingValue(value)); err != nil {
			return fmt.Errorf("invalid %s setting %q: %w", plugin, key, err)
		}
	}
	return nil
}

func settingValue(value interface{}) string {
	if list, ok := value.([]interface{}); ok {
		parts := make([]string, len(list))
		for i, item := range list {
			parts[i] = fmt.Sprint(item)
		}
		return strings.Join(parts, ",")
	}
	return fmt.Sprint(value)
}
