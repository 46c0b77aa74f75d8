// Package snmp reads APC UPS status from a network management card using the
// PowerNet MIB.
package snmp

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/gosnmp/gosnmp"
	"go.uber.org/zap"

	"systemstat/base"
)

// OIDDefinition is one PowerNet value read for a UPS.
type OIDDefinition struct {
	OID    string
	Name   string
	Format string // status, gauge, timeticks
}

// apcOIDs maps upsBasic/upsAdv objects onto the apcaccess field names.
var apcOIDs = []OIDDefinition{
	{OID: ".1.3.6.1.4.1.318.1.1.1.4.1.1.0", Name: "STATUS", Format: "status"},
	{OID: ".1.3.6.1.4.1.318.1.1.1.3.2.1.0", Name: "LINEV", Format: "gauge"},
	{OID: ".1.3.6.1.4.1.318.1.1.1.2.2.8.0", Name: "BATTV", Format: "gauge"},
	{OID: ".1.3.6.1.4.1.318.1.1.1.2.2.1.0", Name: "BCHARGE", Format: "gauge"},
	{OID: ".1.3.6.1.4.1.318.1.1.1.2.2.3.0", Name: "TIMELEFT", Format: "timeticks"},
	{OID: ".1.3.6.1.4.1.318.1.1.1.4.2.3.0", Name: "LOADPCT", Format: "gauge"},
}

// upsBasicOutputStatus values, named the way apcupsd reports them.
var outputStatus = map[int64]string{
	1:  "UNKNOWN",
	2:  "ONLINE",
	3:  "ONBATT",
	4:  "ONLINE BOOST",
	5:  "SLEEPING",
	6:  "BYPASS",
	7:  "OFF",
	8:  "REBOOTING",
	9:  "BYPASS",
	10: "BYPASS",
	11: "SLEEPING",
	12: "ONLINE TRIM",
}

// Reader queries UPS management cards.
type Reader struct {
	log     *zap.Logger
	retries int
}

// NewReader returns a Reader that logs through log.
func NewReader(log *zap.Logger) *Reader {
	if log == nil {
		log = zap.NewNop()
	}
	return &Reader{log: log.Named("snmp"), retries: 1}
}

// ReadUPS fetches every PowerNet value in one GET.
func (r *Reader) ReadUPS(ctx context.Context, target plugin.SNMPTarget, timeout time.Duration) (plugin.UPSStatus, error) {
	version, err := getSNMPVersion(target.Version)
	if err != nil {
		return plugin.UPSStatus{}, err
	}
	client := &gosnmp.GoSNMP{
		Target:    target.Host,
		Port:      uint16(target.Port),
		Community: target.Community,
		Version:   version,
		Timeout:   timeout,
		Retries:   r.retries,
		Context:   ctx,
	}

	if err := client.Connect(); err != nil {
		return plugin.UPSStatus{}, fmt.Errorf("%w: snmp %s: %v", plugin.ErrConnection, target.Host, err)
	}
	defer client.Conn.Close()

	oids := make([]string, len(apcOIDs))
	for i, d := range apcOIDs {
		oids[i] = d.OID
	}
	result, err := client.Get(oids)
	if err != nil {
		return plugin.UPSStatus{}, fmt.Errorf("%w: snmp get %s: %v", plugin.ErrConnection, target.Host, err)
	}
	r.log.Debug("ups queried", zap.String("host", target.Host), zap.Int("variables", len(result.Variables)))
	return statusFromPDUs(result.Variables), nil
}

// statusFromPDUs converts a GET response; missing objects stay nil.
func statusFromPDUs(pdus []gosnmp.SnmpPDU) plugin.UPSStatus {
	byOID := make(map[string]gosnmp.SnmpPDU, len(pdus))
	for _, p := range pdus {
		byOID["."+strings.TrimPrefix(p.Name, ".")] = p
	}

	var s plugin.UPSStatus
	for _, def := range apcOIDs {
		pdu, ok := byOID[def.OID]
		if !ok {
			continue
		}
		v, ok := formatValue(pdu, def.Format)
		if !ok {
			continue
		}
		switch def.Name {
		case "STATUS":
			name, known := outputStatus[int64(v)]
			if !known {
				name = "UNKNOWN"
			}
			s.Status = name
		case "LINEV":
			s.LineVoltage = &v
		case "BATTV":
			s.BatteryVoltage = &v
		case "BCHARGE":
			s.BatteryCharge = &v
		case "TIMELEFT":
			s.TimeLeft = &v
		case "LOADPCT":
			s.Load = &v
		}
	}
	return s
}

// formatValue converts a PDU to a float. Timeticks become minutes.
func formatValue(pdu gosnmp.SnmpPDU, format string) (float64, bool) {
	switch pdu.Type {
	case gosnmp.NoSuchObject, gosnmp.NoSuchInstance, gosnmp.EndOfMibView, gosnmp.Null:
		return 0, false
	}
	n := gosnmp.ToBigInt(pdu.Value)
	if n == nil {
		return 0, false
	}
	f, _ := n.Float64()
	if format == "timeticks" {
		// hundredths of a second
		f = f / 100 / 60
	}
	return f, true
}

// getSNMPVersion converts a version string to the gosnmp constant.
func getSNMPVersion(version string) (gosnmp.SnmpVersion, error) {
	switch strings.ToLower(version) {
	case "1":
		return gosnmp.Version1, nil
	case "", "2c", "2":
		return gosnmp.Version2c, nil
	default:
		return 0, fmt.Errorf("%w: snmp version %q", plugin.ErrUnsupported, version)
	}
}
