package notifier

import "cargo_ingest/internal/domain"

// Directory resolves named recipients to phone numbers.
type Directory struct {
	phones map[string]string
	notify []string
}

// NewDirectory builds a directory that notifies the names in notify, in order.
func NewDirectory(phones map[string]string, notify []string) *Directory {
	return &Directory{phones: phones, notify: notify}
}

func (d *Directory) Recipients() []string {
	return d.notify
}

// Lookup returns the phone configured for name. An unconfigured recipient is
// a ConfigurationError for that recipient only.
func (d *Directory) Lookup(name string) (string, error) {
	phone := d.phones[name]
	if phone == "" {
		return "", &domain.ConfigurationError{Setting: "recipients." + name}
	}
	return phone, nil
}
