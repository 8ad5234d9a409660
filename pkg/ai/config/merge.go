// Package config merges provider configuration structs.
package config

import (
	"reflect"
)

// Merge copies every non-zero field of source onto target. Empty slices and
// maps count as zero, so a partial config only overrides what it sets.
func Merge[T any](target, source *T) {
	if target == nil || source == nil {
		return
	}

	targetVal := reflect.ValueOf(target).Elem()
	sourceVal := reflect.ValueOf(source).Elem()
	if sourceVal.Kind() != reflect.Struct {
		return
	}

	for i := 0; i < sourceVal.NumField(); i++ {
		sourceField := sourceVal.Field(i)
		targetField := targetVal.Field(i)
		if !targetField.CanSet() {
			continue
		}

		switch sourceField.Kind() {
		case reflect.Slice, reflect.Map:
			if !sourceField.IsNil() && sourceField.Len() > 0 {
				targetField.Set(sourceField)
			}
		default:
			if !sourceField.IsZero() {
				targetField.Set(sourceField)
			}
		}
	}
}
