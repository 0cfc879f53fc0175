package persistence

import (
	"cmp"
	"context"
	"fmt"
	"os"
	"slices"
	"time"

	"gopkg.in/yaml.v3"

	"factory-scheduler/internal/engine"
	"factory-scheduler/internal/types"
)

// StepDef 是主数据文件中的工序定义，时间以秒为单位
type StepDef struct {
	ID               int64  `yaml:"id"`
	SequenceOrder    int    `yaml:"sequence_order"`
	ProcessName      string `yaml:"process_name"`
	EquipmentGroupID int64  `yaml:"equipment_group_id"`
	SetupSeconds     int64  `yaml:"setup_time_seconds"`
	UnitSeconds      int64  `yaml:"unit_time_seconds"`
	Rule             string `yaml:"rule,omitempty"`
}

func (s StepDef) ToModel(productID int64) types.Step {
	return types.Step{
		ID:               s.ID,
		ProductID:        productID,
		SequenceOrder:    s.SequenceOrder,
		EquipmentGroupID: s.EquipmentGroupID,
		ProcessName:      s.ProcessName,
		Setup:            time.Duration(s.SetupSeconds) * time.Second,
		PerUnit:          time.Duration(s.UnitSeconds) * time.Second,
		Rule:             s.Rule,
	}
}

type ProductDef struct {
	ID    int64     `yaml:"id"`
	Name  string    `yaml:"name"`
	Steps []StepDef `yaml:"steps"`
}

type GroupDef struct {
	ID      int64   `yaml:"id"`
	Name    string  `yaml:"name"`
	Members []int64 `yaml:"members"`
}

type EquipmentDef struct {
	ID   int64  `yaml:"id"`
	Name string `yaml:"name"`
}

// CalendarDayDef 是工作日历的例外日，Tenant 为空时对所有租户生效
type CalendarDayDef struct {
	Tenant    string `yaml:"tenant,omitempty"`
	Date      string `yaml:"date"`
	IsHoliday bool   `yaml:"is_holiday"`
	Note      string `yaml:"note,omitempty"`
}

// CatalogFile 是主数据文件的顶层结构
type CatalogFile struct {
	Products  []ProductDef     `yaml:"products"`
	Groups    []GroupDef       `yaml:"equipment_groups"`
	Equipment []EquipmentDef   `yaml:"equipment"`
	Calendar  []CalendarDayDef `yaml:"calendar"`
}

type tenantDay struct {
	tenant string
	day    types.CalendarDay
}

// Catalog 是只读的主数据，加载后不再变化
type Catalog struct {
	steps     map[int64][]types.Step // productID -> 按顺序排列的工序
	stepNames map[int64]string
	groups    map[int64][]int64
	equipment map[int64]string
	calendar  []tenantDay
}

// LoadCatalog 读取并校验主数据文件，日历日期按 loc 解释
func LoadCatalog(path string, loc *time.Location) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParseCatalog(data, loc)
}

// ParseCatalog 解析 YAML 格式的主数据
func ParseCatalog(data []byte, loc *time.Location) (*Catalog, error) {
	var file CatalogFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("decode catalog: %w", err)
	}
	return NewCatalog(file, loc)
}

// NewCatalog 根据已解码的主数据构建索引
func NewCatalog(file CatalogFile, loc *time.Location) (*Catalog, error) {
	if loc == nil {
		loc = time.Local
	}
	c := &Catalog{
		steps:     make(map[int64][]types.Step),
		stepNames: make(map[int64]string),
		groups:    make(map[int64][]int64),
		equipment: make(map[int64]string),
	}

	for _, p := range file.Products {
		if _, dup := c.steps[p.ID]; dup {
			return nil, fmt.Errorf("duplicate product %d", p.ID)
		}
		steps := make([]types.Step, 0, len(p.Steps))
		for _, def := range p.Steps {
			if _, dup := c.stepNames[def.ID]; dup {
				return nil, fmt.Errorf("duplicate step %d", def.ID)
			}
			if def.SetupSeconds < 0 || def.UnitSeconds < 0 {
				return nil, fmt.Errorf("step %d: negative duration", def.ID)
			}
			steps = append(steps, def.ToModel(p.ID))
			c.stepNames[def.ID] = def.ProcessName
		}
		slices.SortStableFunc(steps, func(a, b types.Step) int { return cmp.Compare(a.SequenceOrder, b.SequenceOrder) })
		for i := 1; i < len(steps); i++ {
			if steps[i].SequenceOrder == steps[i-1].SequenceOrder {
				return nil, fmt.Errorf("product %d: duplicate sequence_order %d", p.ID, steps[i].SequenceOrder)
			}
		}
		c.steps[p.ID] = steps
	}

	for _, g := range file.Groups {
		c.groups[g.ID] = slices.Clone(g.Members)
	}
	for _, e := range file.Equipment {
		c.equipment[e.ID] = e.Name
	}

	for _, d := range file.Calendar {
		date, err := time.ParseInLocation(time.DateOnly, d.Date, loc)
		if err != nil {
			return nil, fmt.Errorf("calendar date %q: %w", d.Date, err)
		}
		c.calendar = append(c.calendar, tenantDay{
			tenant: d.Tenant,
			day:    types.CalendarDay{Date: date, IsHoliday: d.IsHoliday, Note: d.Note},
		})
	}
	return c, nil
}

// ListStepsForProduct 按 SequenceOrder 升序返回产品的全部工序
func (c *Catalog) ListStepsForProduct(_ context.Context, productID int64) ([]types.Step, error) {
	return slices.Clone(c.steps[productID]), nil
}

// ResolveGroupMembers 返回设备组的成员设备 ID，未知设备组返回空
func (c *Catalog) ResolveGroupMembers(_ context.Context, groupID int64) ([]int64, error) {
	return slices.Clone(c.groups[groupID]), nil
}

func (c *Catalog) ProcessName(_ context.Context, stepID int64) string {
	if name, ok := c.stepNames[stepID]; ok && name != "" {
		return name
	}
	return engine.UnknownName
}

func (c *Catalog) EquipmentName(_ context.Context, equipmentID int64) (*string, error) {
	name, ok := c.equipment[equipmentID]
	if !ok {
		return nil, nil
	}
	return &name, nil
}

// Equipment 返回全部设备，按 ID 排序
func (c *Catalog) Equipment() []EquipmentDef {
	defs := make([]EquipmentDef, 0, len(c.equipment))
	for id, name := range c.equipment {
		defs = append(defs, EquipmentDef{ID: id, Name: name})
	}
	slices.SortFunc(defs, func(a, b EquipmentDef) int { return cmp.Compare(a.ID, b.ID) })
	return defs
}

// CalendarDays 返回 [from, to] 内对该租户生效的日历例外
func (c *Catalog) CalendarDays(_ context.Context, tenantID string, from, to time.Time) ([]types.CalendarDay, error) {
	var days []types.CalendarDay
	for _, td := range c.calendar {
		if td.tenant != "" && td.tenant != tenantID {
			continue
		}
		if td.day.Date.Before(from) || td.day.Date.After(to) {
			continue
		}
		days = append(days, td.day)
	}
	return days, nil
}
