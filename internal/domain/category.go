package domain

import "time"

type Category struct {
	ID          int64      `json:"id"`
	Name        string     `json:"name"`
	Slug        string     `json:"slug"`
	Description string     `json:"description,omitempty"`
	ParentID    *int64     `json:"parent_id,omitempty"`
	Children    []Category `json:"children,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// BuildCategoryTree nests a flat category list under its parents. Categories
// whose parent is missing from the list are returned as roots.
func BuildCategoryTree(flat []Category) []Category {
	byParent := make(map[int64][]Category)
	known := make(map[int64]bool, len(flat))
	for _, c := range flat {
		known[c.ID] = true
	}

	var roots []Category
	for _, c := range flat {
		if c.ParentID == nil || !known[*c.ParentID] {
			roots = append(roots, c)
			continue
		}
		byParent[*c.ParentID] = append(byParent[*c.ParentID], c)
	}

	var attach func(c Category, depth int) Category
	attach = func(c Category, depth int) Category {
		// a parent cycle in stored data must not recurse forever
		if depth > len(flat) {
			return c
		}
		for _, child := range byParent[c.ID] {
			c.Children = append(c.Children, attach(child, depth+1))
		}
		return c
	}

	tree := make([]Category, 0, len(roots))
	for _, r := range roots {
		tree = append(tree, attach(r, 0))
	}
	return tree
}
