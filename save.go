// FILE: lixenwraith/registry/save.go
package registry

import (
	"crypto/subtle"
)

// Save writes value for key through the named source, then re-resolves key and
// publishes the result. Checks run in a fixed order and the first failure
// aborts with no side effect:
//
//  1. password (when the registry has a password key). The password counts
//     as set only when a source supplies it; the option's default never
//     enables updates. A password supplied as "" requires none.
//  2. key is registered and is not the password key
//  3. source exists
//  4. source can save
//  5. non-dynamic options only go to persistent sources
//  6. value parses under the option's type
//
// Failures are *SaveError values; errors.Is matches their Kind sentinel.
func (r *Registry) Save(key, value, sourceName, password string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	snap := r.current()

	if err := r.authenticate(snap, key, sourceName, password); err != nil {
		r.logger.Warn("Refused configuration update",
			"key", key,
			"source", sourceName,
			"error", err)
		return err
	}

	def, ok := r.defs[key]
	if !ok || key == r.passwordKey {
		return newSaveError(ErrUnknownKey, key, sourceName,
			"Config key '%s' does not exist.", key)
	}

	src, ok := snap.source(sourceName)
	if !ok {
		return newSaveError(ErrUnknownSource, key, sourceName,
			"Configuration source '%s' does not exist.", sourceName)
	}

	if !src.IsSavingPossible() {
		return newSaveError(ErrSourceNotWritable, key, sourceName,
			"Saving to %s is not possible.", sourceName)
	}

	if !def.IsDynamic() && !src.IsSavingPersistent() {
		return newSaveError(ErrNonDynamicOnTransientSource, key, sourceName,
			"Non dynamic options can't be saved to a transient configuration source.")
	}

	if err := def.Validate(value); err != nil {
		se := newSaveError(ErrInvalidValue, key, sourceName,
			"Invalid value for '%s': %s", key, err)
		se.cause = err
		return se
	}

	if err := src.Save(key, value); err != nil {
		se := newSaveError(ErrSaveFailed, key, sourceName,
			"Failed to save '%s' to %s: %s", key, sourceName, err)
		se.cause = err
		return se
	}

	r.republishKey(def)

	logged := value
	if def.IsSensitive() {
		logged = maskedValue
	}
	r.logger.Info("Saved configuration option",
		"key", key,
		"source", sourceName,
		"value", logged,
		"persistent", src.IsSavingPersistent())
	return nil
}

// authenticate gates Save on the password option. A password no source
// supplies disables updates, whatever its default; a password configured as
// "" requires none.
func (r *Registry) authenticate(snap *snapshot, key, sourceName, supplied string) error {
	if r.passwordKey == "" {
		return nil
	}

	ro := snap.resolved[r.passwordKey]
	if ro == nil || ro.SourceName == "" {
		return newSaveError(ErrAuthenticationDisabled, key, sourceName,
			"'%s' is not set.", r.passwordKey)
	}

	configured := formatValue(ro.Value)
	if configured == "" {
		return nil
	}
	if subtle.ConstantTimeCompare([]byte(configured), []byte(supplied)) != 1 {
		return newSaveError(ErrAuthenticationFailed, key, sourceName,
			"Wrong password for '%s'.", r.passwordKey)
	}
	return nil
}
