package ui

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
)

// Member is one row of the member table.
type Member struct {
	Name   string
	ID     string
	Status string
	Self   bool
}

// MemberTable renders the room roster using lipgloss/table
type MemberTable struct {
	members []Member
}

func NewMemberTable(members []Member) *MemberTable {
	return &MemberTable{members: members}
}

// View renders the table as a string
func (t *MemberTable) View() string {
	if len(t.members) == 0 {
		return MutedStyle.Render("Nobody else is here yet")
	}

	var rows [][]string
	for i, m := range t.members {
		name := m.Name
		if m.Self {
			name += " (you)"
		}
		rows = append(rows, []string{fmt.Sprintf("%d", i+1), name, shortID(m.ID), m.Status})
	}

	tbl := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(Primary)).
		Headers("#", "Name", "ID", "Status").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			switch {
			case row == table.HeaderRow:
				return TableHeaderStyle
			case row%2 == 0:
				return TableRowStyle
			default:
				return TableRowAltStyle
			}
		})

	return tbl.Render()
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// RoomInfo is the box shown after joining a room.
type RoomInfo struct {
	RoomID   string
	RoomLink string
	UserName string
}

func (r RoomInfo) View() string {
	boxStyle := lipgloss.NewStyle().
		Border(lipgloss.DoubleBorder()).
		BorderForeground(Success).
		Padding(1, 2)

	content := fmt.Sprintf("%s Joined as %s\n\n%s Room:  %s\n%s Link:  %s",
		IconWave, BoldStyle.Render(r.UserName),
		IconRoom, BoldStyle.Foreground(Primary).Render(r.RoomID),
		IconLink, MutedStyle.Render(r.RoomLink),
	)

	return boxStyle.Render(content)
}
