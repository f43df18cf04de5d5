package convert

import (
	"strings"

	"github.com/vincentbai/telemetry-converter/internal/telemetry"
	"github.com/vincentbai/telemetry-converter/internal/value"
)

// PayloadMapper builds v3 edata blocks from a v2 source record. It only reads
// the source; every returned map is freshly allocated.
type PayloadMapper struct {
	src *telemetry.Reader
}

func NewPayloadMapper(src *telemetry.Reader) *PayloadMapper {
	return &PayloadMapper{src: src}
}

// Payload returns the edata for an event of type target converted from a
// source event of type source.
func (p *PayloadMapper) Payload(target, source string) value.Map {
	category := Category(source)
	switch target {
	case EidStart:
		return p.start(category)
	case EidEnd:
		return p.end(category)
	case EidImpression:
		return p.impression(source)
	case EidInteract:
		return p.interact()
	case EidLog:
		return p.log(source)
	case EidExdata:
		return p.exdata(category)
	}
	return p.passthrough(category)
}

func (p *PayloadMapper) start(category string) value.Map {
	out := value.Map{"type": value.String(category)}
	p.copyPath(out, "mode", "edata.eks.mode")
	p.copyPath(out, "duration", "edata.eks.load_time")
	p.copyPath(out, "pageid", "edata.eks.stageid")
	p.copyPath(out, "uaspec", "edata.uaspec")
	p.copyPath(out, "loc", "edata.eks.loc")
	if dspec := telemetry.Read[value.Map](p.src, "edata.dspec"); !dspec.IsNull() {
		d := dspec.Value().Clone()
		delete(d, "mdata")
		out["dspec"] = value.Object(d)
	}
	return out
}

func (p *PayloadMapper) end(category string) value.Map {
	out := value.Map{"type": value.String(category)}
	p.copyPath(out, "mode", "edata.eks.mode")
	p.copyPath(out, "duration", "edata.eks.length")
	p.copyPath(out, "pageid", "edata.eks.stageid")
	p.copyPath(out, "summary", "edata.eks.summary")
	return out
}

func (p *PayloadMapper) impression(source string) value.Map {
	out := value.Map{"type": value.String("view")}
	if !p.copyPath(out, "subtype", "edata.eks.subtype") && source == "CE_START" {
		out["subtype"] = value.String("load")
	}
	if !p.copyPath(out, "pageid", "edata.eks.stageid") {
		p.copyPath(out, "pageid", "edata.eks.uri")
	}
	p.copyPath(out, "uri", "edata.eks.uri")
	return out
}

func (p *PayloadMapper) interact() value.Map {
	out := value.Map{}
	if t := telemetry.Read[string](p.src, "edata.eks.type"); !t.IsNull() {
		out["type"] = value.String(strings.ToLower(t.Value()))
	}
	p.copyPath(out, "subtype", "edata.eks.subtype")
	p.copyPath(out, "id", "edata.eks.id")
	p.copyPath(out, "pageid", "edata.eks.stageid")
	if target, ok := p.src.Lookup("edata.eks.target"); ok {
		out["target"] = value.Object(value.Map{"id": target.Clone()})
	}
	extra := value.Map{}
	p.copyPath(extra, "pos", "edata.eks.pos")
	p.copyPath(extra, "values", "edata.eks.values")
	if len(extra) > 0 {
		out["extra"] = value.Object(extra)
	}
	return out
}

func (p *PayloadMapper) log(source string) value.Map {
	subtype := strings.ToLower(telemetry.Read[string](p.src, "edata.eks.subtype").Value())
	out := value.Map{
		"type":    value.String("view"),
		"level":   value.String("INFO"),
		"message": value.String(strings.TrimSpace(source + " " + subtype)),
	}
	p.copyPath(out, "pageid", "edata.eks.stageid")
	if subtype != "" {
		out["params"] = value.List(value.Object(value.Map{"subtype": value.String(subtype)}))
	}
	return out
}

func (p *PayloadMapper) exdata(category string) value.Map {
	out := value.Map{"type": value.String(category)}
	p.copyPath(out, "data", "edata.dspec.mdata")
	return out
}

func (p *PayloadMapper) passthrough(category string) value.Map {
	var out value.Map
	if eks := telemetry.Read[value.Map](p.src, "edata.eks"); !eks.IsNull() {
		out = eks.Value().Clone()
	} else if edata := telemetry.Read[value.Map](p.src, "edata"); !edata.IsNull() {
		out = edata.Value().Clone()
	} else {
		out = value.Map{}
	}
	if _, ok := out["type"]; !ok && category != CategoryUnknown {
		out["type"] = value.String(category)
	}
	return out
}

// copyPath clones the value at path into dst[key] and reports whether it existed.
func (p *PayloadMapper) copyPath(dst value.Map, key, path string) bool {
	v, ok := p.src.Lookup(path)
	if !ok {
		return false
	}
	dst[key] = v.Clone()
	return true
}
