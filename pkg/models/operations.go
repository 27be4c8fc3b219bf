package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// Count is an expedient count. The backend sends it either as a JSON number
// or, for COUNT(*) columns, as a numeric string.
type Count float64

// UnmarshalJSON accepts a number, a numeric string, or null.
func (c *Count) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if isNull(trimmed) {
		*c = 0
		return nil
	}
	if trimmed[0] == '"' {
		var s string
		if err := json.Unmarshal(trimmed, &s); err != nil {
			return err
		}
		if s == "" {
			*c = 0
			return nil
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return fmt.Errorf("count %q: %w", s, err)
		}
		*c = Count(f)
		return nil
	}
	var f float64
	if err := json.Unmarshal(trimmed, &f); err != nil {
		return err
	}
	*c = Count(f)
	return nil
}

// ExpedientTypeStat is one row of /expedients-by-type: expedients of a
// regional office split by normal process and automatic renewal.
type ExpedientTypeStat struct {
	CityCode         string `json:"cityCode"`
	NormalProcess    Count  `json:"normalProcessExpedientCount"`
	AutomaticRenewal Count  `json:"automaticRenovationExpedientCount"`
}

// ExpedientProcedureStat is one row of /expedients-by-procedure.
type ExpedientProcedureStat struct {
	ProcedureType string `json:"procedureType"`
	Category      string `json:"category"`
	Count         Count  `json:"expedientCount"`
}

// ExpedientModalityStat is one row of /expedients-by-modality.
type ExpedientModalityStat struct {
	ProcedureType      string `json:"procedureType"`
	ModalityOrCategory string `json:"modalityOrCategory"`
	Count              Count  `json:"expedientCount"`
}
