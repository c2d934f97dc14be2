package protocol

import (
	"encoding/json"
	"fmt"
)

// Operators understood by the terminals.
const (
	OperatorEditPerson = "EditPerson"
	OperatorAddPersons = "AddPersons"
)

// Person is one face registration carried by a command.
type Person struct {
	UserID   string
	Name     string
	ImageURI string
}

type editPersonInfo struct {
	PersonType   int    `json:"personType"`
	TempCardType int    `json:"tempCardType"`
	CustomID     string `json:"customId"`
	Name         string `json:"name"`
	PicURI       string `json:"picURI"`
}

type editPersonCommand struct {
	Operator  string           `json:"operator"`
	MessageID string           `json:"messageId"`
	Info      []editPersonInfo `json:"info"`
}

type addPersonsInfo struct {
	CustomID string `json:"customId"`
	Name     string `json:"name"`
	PicURI   string `json:"picURI"`
}

type addPersonsCommand struct {
	Operator  string           `json:"operator"`
	MessageID string           `json:"messageId"`
	DataBegin string           `json:"DataBegin"`
	PersonNum int              `json:"PersonNum"`
	Info      []addPersonsInfo `json:"info"`
	DataEnd   string           `json:"DataEnd"`
}

// EncodeEditPerson builds a single person EditPerson command.
func EncodeEditPerson(messageID string, p Person) ([]byte, error) {
	return json.Marshal(editPersonCommand{
		Operator:  OperatorEditPerson,
		MessageID: messageID,
		Info: []editPersonInfo{{
			CustomID: p.UserID,
			Name:     p.Name,
			PicURI:   p.ImageURI,
		}},
	})
}

// EncodeAddPersons builds a bulk AddPersons command.
func EncodeAddPersons(messageID string, persons []Person) ([]byte, error) {
	if len(persons) == 0 {
		return nil, fmt.Errorf("AddPersons requires at least one person")
	}

	info := make([]addPersonsInfo, 0, len(persons))
	for _, p := range persons {
		info = append(info, addPersonsInfo{CustomID: p.UserID, Name: p.Name, PicURI: p.ImageURI})
	}

	return json.Marshal(addPersonsCommand{
		Operator:  OperatorAddPersons,
		MessageID: messageID,
		DataBegin: "BeginFlag",
		PersonNum: len(persons),
		Info:      info,
		DataEnd:   "EndFlag",
	})
}

// Encode picks the payload shape for operator.
func Encode(operator, messageID string, persons []Person) ([]byte, error) {
	switch operator {
	case OperatorEditPerson:
		if len(persons) != 1 {
			return nil, fmt.Errorf("EditPerson carries exactly one person, got %d", len(persons))
		}
		return EncodeEditPerson(messageID, persons[0])
	case OperatorAddPersons:
		return EncodeAddPersons(messageID, persons)
	default:
		return nil, fmt.Errorf("unsupported operator %q", operator)
	}
}
