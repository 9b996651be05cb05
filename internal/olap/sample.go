package olap

// NewSampleCatalog builds a small Sales cube used by tests and by the CLI
// when no catalog directory is configured.
//
//	Product       (All Products) Family / Department
//	Time          (All Times)    Year / Quarter / Month
//	Time.Weekly   (All Weeklys)  Year / Week / Day
//	Employees     (All Employees) parent-child
//	Store Type    no All member
func NewSampleCatalog(naming Naming) (*Catalog, *Cube) {
	cat := NewCatalog()
	cube := NewCube("Sales", naming)

	product := cube.AddDimension("Product").AddHierarchy("", HierarchyOptions{HasAll: true})
	product.AddLevel("Product Family")
	product.AddLevel("Product Department")

	timeDim := cube.AddDimension("Time")
	calendar := timeDim.AddHierarchy("", HierarchyOptions{HasAll: true})
	calendar.AddLevel("Year")
	calendar.AddLevel("Quarter")
	calendar.AddLevel("Month")
	weekly := timeDim.AddHierarchy("Weekly", HierarchyOptions{HasAll: true})
	weekly.AddLevel("Year")
	weekly.AddLevel("Week")
	weekly.AddLevel("Day")

	employees := cube.AddDimension("Employees").AddHierarchy("", HierarchyOptions{HasAll: true, AllMemberName: "All Employees", ParentChild: true})
	employees.AddLevel("Employee Id")

	storeType := cube.AddDimension("Store Type").AddHierarchy("", HierarchyOptions{})
	storeType.AddLevel("Store Type")

	if err := cat.AddCube(cube); err != nil {
		panic(err)
	}

	add := func(h *Hierarchy, parent *Member, name string) *Member {
		m, err := cat.AddMember(h, parent, name)
		if err != nil {
			panic(err)
		}
		return m
	}

	add(product, nil, "Drink")
	food := add(product, nil, "Food")
	add(product, nil, "Non-Consumable")
	for _, n := range []string{"Baked Goods", "Baking Goods", "Breakfast Foods", "Canned Foods", "Dairy", "Deli"} {
		add(product, food, n)
	}

	y1997 := add(calendar, nil, "1997")
	y1998 := add(calendar, nil, "1998")
	for _, q := range []string{"Q1", "Q2", "Q3", "Q4"} {
		qm := add(calendar, y1997, q)
		if q == "Q1" {
			for _, m := range []string{"1", "2", "3"} {
				add(calendar, qm, m)
			}
		}
	}
	add(calendar, y1998, "Q1")

	w1997 := add(weekly, nil, "1997")
	for _, w := range []string{"1", "2", "3", "4", "5", "6", "7", "8"} {
		add(weekly, w1997, w)
	}

	sheri := add(employees, nil, "Sheri Nowmer")
	derrick := add(employees, sheri, "Derrick Whelply")
	add(employees, sheri, "Michael Spence")
	add(employees, derrick, "Beverly Baker")

	add(storeType, nil, "Supermarket")
	add(storeType, nil, "Deluxe Supermarket")

	return cat, cube
}
