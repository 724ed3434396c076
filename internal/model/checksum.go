package model

// ChecksumRecord stores the last imported content hash for a bundle section,
// keyed by namespace ("import.brands", "import.categories", ...). Used only by
// the import pipeline's change gate.
type ChecksumRecord struct {
	Key  string `gorm:"primaryKey"`
	Hash string `gorm:"not null"`
}

func (ChecksumRecord) TableName() string { return "checksum_records" }
