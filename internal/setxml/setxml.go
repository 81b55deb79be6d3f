// Package setxml imports legacy .set.xml stage layouts and converts them
// into hson objects.
package setxml

import (
	"context"
	"encoding/xml"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/zclconf/go-cty/cty"

	"github.com/he2tools/he2kit/internal/ctxlog"
	"github.com/he2tools/he2kit/internal/geom"
	"github.com/he2tools/he2kit/internal/hson"
	"github.com/he2tools/he2kit/internal/params"
)

// element is the schemaless view of the file: object entries are element
// names, everything below them is nested elements with text leaves.
type element struct {
	XMLName  xml.Name
	Children []element `xml:",any"`
	Text     string    `xml:",chardata"`
}

func (e *element) child(name string) *element {
	for i := range e.Children {
		if e.Children[i].XMLName.Local == name {
			return &e.Children[i]
		}
	}
	return nil
}

func (e *element) text() string {
	return strings.TrimSpace(e.Text)
}

func (e *element) float() float64 {
	v, _ := strconv.ParseFloat(e.text(), 64)
	return v
}

func (e *element) isLeaf() bool {
	return len(e.Children) == 0
}

// Decode parses a .set.xml layout into hson objects. Entries without a
// SetObjectID carry nothing addressable and are skipped with a warning.
// MultiSetParam entries expand into one object per placement.
func Decode(ctx context.Context, data []byte) ([]*hson.Object, error) {
	logger := ctxlog.FromContext(ctx)

	var root element
	if err := xml.Unmarshal(data, &root); err != nil {
		return nil, fmt.Errorf("failed to parse set.xml: %w", err)
	}

	var objects []*hson.Object
	for i := range root.Children {
		entry := &root.Children[i]
		idEl := entry.child("SetObjectID")
		if idEl == nil || idEl.text() == "" {
			logger.Warn("Entry has no SetObjectID, skipping", "type", entry.XMLName.Local)
			continue
		}
		expanded, err := convertEntry(entry, idEl.text())
		if err != nil {
			return nil, fmt.Errorf("entry %s/%s: %w", entry.XMLName.Local, idEl.text(), err)
		}
		objects = append(objects, expanded...)
	}

	logger.Debug("set.xml decoded", "entries", len(root.Children), "objects", len(objects))
	return objects, nil
}

func convertEntry(entry *element, sid string) ([]*hson.Object, error) {
	typeName := entry.XMLName.Local

	obj := &hson.Object{
		ID:       "{" + sid + "}",
		Name:     typeName + "." + sid,
		Type:     typeName,
		Position: positionOf(entry.child("Position")),
		Rotation: rotationOf(entry.child("Rotation")),
		Scale:    []float64{1, 1, 1},
	}
	if pid := entry.child("ParentId"); pid != nil && pid.text() != "" {
		obj.ParentID = pid.text()
	}

	bag := params.FlatBag{}
	for i := range entry.Children {
		ch := &entry.Children[i]
		switch ch.XMLName.Local {
		case "Position", "Rotation", "SetObjectID", "ParentId", "MultiSetParam":
			continue
		}
		if ch.isLeaf() {
			bag[ch.XMLName.Local] = cty.StringVal(ch.text())
			continue
		}
		for j := range ch.Children {
			sub := &ch.Children[j]
			bag[ch.XMLName.Local+":"+sub.XMLName.Local] = cty.StringVal(sub.text())
		}
	}

	msp := entry.child("MultiSetParam")
	if msp != nil {
		for _, name := range []string{"BaseLine", "Count", "Direction", "Interval", "IntervalBase", "PositionBase", "RotationBase"} {
			if el := msp.child(name); el != nil {
				bag["MultiSetParam:"+name] = cty.StringVal(el.text())
			}
		}
	}

	if len(bag) > 0 {
		if err := obj.SetFlatParams(bag); err != nil {
			return nil, err
		}
	}

	if msp == nil {
		return []*hson.Object{obj}, nil
	}
	return expandMultiSet(obj, msp), nil
}

// expandMultiSet turns one MultiSetParam entry into individual placements.
// Explicit Element children win; otherwise Count placements step away from
// the entry's own position by BaseLine plus Interval multiples, scaled by
// the cosine of the direction angle.
func expandMultiSet(base *hson.Object, msp *element) []*hson.Object {
	objects := []*hson.Object{base}

	var elements []*element
	for i := range msp.Children {
		if msp.Children[i].XMLName.Local == "Element" {
			elements = append(elements, &msp.Children[i])
		}
	}

	if len(elements) > 0 {
		for n, el := range elements {
			dup := cloneObject(base)
			dup.ID = strings.TrimSuffix(base.ID, "}") + "_idx" + strconv.Itoa(n) + "}"
			dup.Name = base.Name + "_idx" + strconv.Itoa(n)
			if pos := el.child("Position"); pos != nil {
				dup.Position = positionOf(pos)
			}
			if rot := el.child("Rotation"); rot != nil {
				dup.Rotation = rotationOf(rot)
			}
			objects = append(objects, dup)
		}
		return objects
	}

	count := 0
	if el := msp.child("Count"); el != nil {
		count, _ = strconv.Atoi(el.text())
	}
	baseLine := 0.0
	if el := msp.child("BaseLine"); el != nil {
		baseLine = el.float()
	}
	interval := 0.0
	if el := msp.child("Interval"); el != nil {
		interval = el.float()
	}
	// Direction is stored in degrees.
	direction := 0.0
	if el := msp.child("Direction"); el != nil {
		direction = el.float() * math.Pi / 180
	}
	for k := 1; k < count; k++ {
		off := baseLine + interval*float64(k)
		dup := cloneObject(base)
		dup.ID = strings.TrimSuffix(base.ID, "}") + "_idx" + strconv.Itoa(k) + "}"
		dup.Name = base.Name + "_idx" + strconv.Itoa(k)
		dup.Position = []float64{
			base.Position[0],
			base.Position[1] - off*math.Cos(direction),
			base.Position[2],
		}
		objects = append(objects, dup)
	}
	return objects
}

func cloneObject(o *hson.Object) *hson.Object {
	dup := *o
	dup.Position = append([]float64(nil), o.Position...)
	dup.Rotation = append([]float64(nil), o.Rotation...)
	dup.Scale = append([]float64(nil), o.Scale...)
	return &dup
}

func positionOf(el *element) []float64 {
	if el == nil {
		return []float64{0, 0, 0}
	}
	var x, y, z float64
	if c := el.child("x"); c != nil {
		x = c.float()
	}
	if c := el.child("y"); c != nil {
		y = c.float()
	}
	if c := el.child("z"); c != nil {
		z = c.float()
	}
	v := geom.FromSourcePosition(x, y, z)
	return []float64{v.X, v.Y, v.Z}
}

func rotationOf(el *element) []float64 {
	if el == nil {
		return []float64{1, 0, 0, 0}
	}
	var q geom.Quat
	if c := el.child("x"); c != nil {
		q.X = c.float()
	}
	if c := el.child("y"); c != nil {
		q.Y = c.float()
	}
	if c := el.child("z"); c != nil {
		q.Z = c.float()
	}
	if c := el.child("w"); c != nil {
		q.W = c.float()
	}
	return []float64{q.W, q.X, q.Y, q.Z}
}
