package config

type StorageDriver int

const (
	Memory StorageDriver = iota + 1
	Postgres
)

// String converts the StorageDriver enum to a human-readable string.
func (d StorageDriver) String() string {
	switch d {
	case Memory:
		return "memory"
	case Postgres:
		return "postgres"
	}
	return "unknown"
}
